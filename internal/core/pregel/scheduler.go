package pregel

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	imetrics "github.com/flowgraph/gremlin/internal/infrastructure/metrics"
)

// WorkStealingScheduler runs vertex tasks on a fixed pool of workers. Tasks
// are assigned round-robin; an idle worker steals from its peers before it
// blocks on its own queue.
type WorkStealingScheduler struct {
	queues     []chan VertexTask
	numWorkers int
	counter    int64
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

// VertexTask is one vertex execution. Run is called on a worker and its
// result is delivered on Result.
type VertexTask struct {
	VertexID any
	Index    int
	Run      func() VertexResult
	Result   chan<- VertexResult
}

// VertexResult is what a vertex task reports back to the computer.
type VertexResult struct {
	VertexID any
	Index    int
	Attempts int
	Error    error
	exec     *execution
}

// stealInterval bounds how long an idle worker waits before trying to steal again.
const stealInterval = time.Millisecond

func NewWorkStealingScheduler(numWorkers int, queueCapacity int) *WorkStealingScheduler {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
		if numWorkers < 1 {
			numWorkers = 1
		}
	}
	if queueCapacity <= 0 {
		queueCapacity = 100
	}

	queues := make([]chan VertexTask, numWorkers)
	for i := range queues {
		queues[i] = make(chan VertexTask, queueCapacity)
	}

	ctx, cancel := context.WithCancel(context.Background())

	ws := &WorkStealingScheduler{
		queues:     queues,
		numWorkers: numWorkers,
		ctx:        ctx,
		cancel:     cancel,
	}
	imetrics.SetSchedulerWorkers(numWorkers)
	return ws
}

// Schedule enqueues a task. It blocks while the chosen queue is full and
// returns false once the scheduler is stopped.
func (ws *WorkStealingScheduler) Schedule(task VertexTask) bool {
	worker := atomic.AddInt64(&ws.counter, 1) % int64(ws.numWorkers)
	select {
	case ws.queues[worker] <- task:
		imetrics.AddSchedulerQueued(1)
		return true
	case <-ws.ctx.Done():
		return false
	}
}

func (ws *WorkStealingScheduler) StartWorkers() {
	for i := 0; i < ws.numWorkers; i++ {
		ws.wg.Add(1)
		go ws.worker(i)
	}
}

func (ws *WorkStealingScheduler) worker(id int) {
	defer ws.wg.Done()

	timer := time.NewTimer(stealInterval)
	defer timer.Stop()

	for {
		select {
		case <-ws.ctx.Done():
			return
		case task := <-ws.queues[id]:
			ws.executeTask(task)
			continue
		default:
		}

		if ws.stealWork(id) {
			continue
		}

		timer.Reset(stealInterval)
		select {
		case <-ws.ctx.Done():
			return
		case task := <-ws.queues[id]:
			timer.Stop()
			ws.executeTask(task)
		case <-timer.C:
		}
	}
}

func (ws *WorkStealingScheduler) stealWork(workerID int) bool {
	for i := 0; i < ws.numWorkers; i++ {
		if i == workerID {
			continue
		}
		select {
		case task := <-ws.queues[i]:
			ws.executeTask(task)
			return true
		default:
		}
	}
	return false
}

func (ws *WorkStealingScheduler) executeTask(task VertexTask) {
	result := task.Run()
	result.VertexID = task.VertexID
	result.Index = task.Index
	task.Result <- result
}

// Stop signals workers to exit and waits for them. Queued tasks that were
// not picked up are dropped. Stop is idempotent.
func (ws *WorkStealingScheduler) Stop() {
	ws.stopOnce.Do(func() {
		ws.cancel()
		ws.wg.Wait()
	})
}

// SchedulerStats reports scheduler-level metrics.
type SchedulerStats struct {
	NumWorkers   int
	QueueLengths []int
	TotalQueued  int
}

// Stats returns a snapshot of scheduler metrics.
func (ws *WorkStealingScheduler) Stats() SchedulerStats {
	lengths := make([]int, len(ws.queues))
	total := 0
	for i, q := range ws.queues {
		l := len(q)
		lengths[i] = l
		total += l
	}
	return SchedulerStats{
		NumWorkers:   ws.numWorkers,
		QueueLengths: lengths,
		TotalQueued:  total,
	}
}
