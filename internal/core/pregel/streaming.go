package pregel

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Event types emitted during a computation.
const (
	EventComputationStart = "computation_start"
	EventComputationEnd   = "computation_end"
	EventSuperstepStart   = "superstep_start"
	EventSuperstepEnd     = "superstep_end"
	EventVertexRetry      = "vertex_retry"
	EventVertexError      = "vertex_error"
	EventCheckpoint       = "checkpoint"
)

// StreamEvent represents events during a graph computation
type StreamEvent struct {
	Type          string
	ComputationID string
	Program       string
	VertexID      any // set on vertex events
	Step          int
	Data          map[string]any
	Timestamp     time.Time
}

// StreamHandler processes streaming events
type StreamHandler interface {
	HandleEvent(ctx context.Context, event StreamEvent) error
}

// StreamHandlerFunc adapts a function to StreamHandler.
type StreamHandlerFunc func(ctx context.Context, event StreamEvent) error

func (f StreamHandlerFunc) HandleEvent(ctx context.Context, event StreamEvent) error {
	return f(ctx, event)
}

// Streamer fans events out to handlers on a background goroutine. Events
// are dropped when the buffer is full; Stop delivers what is buffered.
type Streamer struct {
	handlers []StreamHandler
	events   chan StreamEvent
	logger   *slog.Logger
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	running  bool
	dropped  atomic.Int64
}

func NewStreamer(logger *slog.Logger) *Streamer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Streamer{
		handlers: make([]StreamHandler, 0),
		events:   make(chan StreamEvent, 1000),
		logger:   logger,
	}
}

func (s *Streamer) AddHandler(handler StreamHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

func (s *Streamer) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		for {
			select {
			case event := <-s.events:
				s.dispatch(event)
			case <-s.ctx.Done():
				for {
					select {
					case event := <-s.events:
						s.dispatch(event)
					default:
						return
					}
				}
			}
		}
	}()
}

func (s *Streamer) dispatch(event StreamEvent) {
	s.mu.RLock()
	handlers := s.handlers
	s.mu.RUnlock()
	ctx := context.WithoutCancel(s.ctx)
	for _, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			s.logger.Warn("stream handler failed", "event", event.Type, "error", err)
		}
	}
}

// EmitEvent queues an event. It is a no-op while the streamer is stopped.
func (s *Streamer) EmitEvent(event StreamEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case s.events <- event:
	default:
		s.dropped.Add(1)
	}
}

// Stop flushes buffered events to the handlers and stops the goroutine.
func (s *Streamer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// Dropped reports how many events were discarded on a full buffer.
func (s *Streamer) Dropped() int64 {
	return s.dropped.Load()
}

// Built-in stream handlers

// LogStreamHandler writes events to a structured logger.
type LogStreamHandler struct {
	Logger  *slog.Logger
	Verbose bool
}

func (lsh *LogStreamHandler) HandleEvent(ctx context.Context, event StreamEvent) error {
	logger := lsh.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"computation", event.ComputationID, "step", event.Step}
	if event.VertexID != nil {
		attrs = append(attrs, "vertex", event.VertexID)
	}
	if lsh.Verbose {
		for k, v := range event.Data {
			attrs = append(attrs, k, v)
		}
	}
	level := slog.LevelDebug
	if event.Type == EventVertexError {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, event.Type, attrs...)
	return nil
}

// MetricsStreamHandler collects execution metrics
type MetricsStreamHandler struct {
	mu             sync.RWMutex
	SuperstepTimes map[int]time.Duration // superstep -> duration
	EventCounts    map[string]int        // event type -> count
	VertexErrors   map[any]int           // vertex -> failed executions
	TotalMessages  int64
	startTimes     map[int]time.Time // superstep -> start time
}

func NewMetricsStreamHandler() *MetricsStreamHandler {
	return &MetricsStreamHandler{
		SuperstepTimes: make(map[int]time.Duration),
		EventCounts:    make(map[string]int),
		VertexErrors:   make(map[any]int),
		startTimes:     make(map[int]time.Time),
	}
}

func (msh *MetricsStreamHandler) HandleEvent(_ context.Context, event StreamEvent) error {
	msh.mu.Lock()
	defer msh.mu.Unlock()

	msh.EventCounts[event.Type]++

	switch event.Type {
	case EventSuperstepStart:
		msh.startTimes[event.Step] = event.Timestamp
	case EventSuperstepEnd:
		if startTime, exists := msh.startTimes[event.Step]; exists {
			msh.SuperstepTimes[event.Step] = event.Timestamp.Sub(startTime)
		}
		if n, ok := event.Data["messages"].(int64); ok {
			msh.TotalMessages += n
		}
	case EventVertexError:
		msh.VertexErrors[event.VertexID]++
	}

	return nil
}

func (msh *MetricsStreamHandler) GetMetrics() map[string]any {
	msh.mu.RLock()
	defer msh.mu.RUnlock()

	totalDuration := time.Duration(0)
	for _, duration := range msh.SuperstepTimes {
		totalDuration += duration
	}

	return map[string]any{
		"superstep_times": msh.SuperstepTimes,
		"event_counts":    msh.EventCounts,
		"vertex_errors":   msh.VertexErrors,
		"total_messages":  msh.TotalMessages,
		"total_duration":  totalDuration,
		"superstep_count": len(msh.SuperstepTimes),
	}
}

// CallbackStreamHandler executes custom callbacks for specific events
type CallbackStreamHandler struct {
	callbacks map[string]func(StreamEvent) error
	mu        sync.RWMutex
}

func NewCallbackStreamHandler() *CallbackStreamHandler {
	return &CallbackStreamHandler{
		callbacks: make(map[string]func(StreamEvent) error),
	}
}

func (csh *CallbackStreamHandler) AddCallback(eventType string, callback func(StreamEvent) error) {
	csh.mu.Lock()
	defer csh.mu.Unlock()
	csh.callbacks[eventType] = callback
}

func (csh *CallbackStreamHandler) HandleEvent(_ context.Context, event StreamEvent) error {
	csh.mu.RLock()
	callback, exists := csh.callbacks[event.Type]
	csh.mu.RUnlock()

	if exists {
		return callback(event)
	}
	return nil
}
