package metrics

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := Value("gremlin_supersteps_total", "")
	IncSupersteps()
	IncSupersteps()
	assert.Equal(t, before+2, Value("gremlin_supersteps_total", ""))

	sent := Value("gremlin_messages_sent_total", "local")
	MessagesSent("local", 3)
	assert.Equal(t, sent+3, Value("gremlin_messages_sent_total", "local"))

	assert.Zero(t, Value("gremlin_does_not_exist", ""))
	assert.Zero(t, Value("gremlin_messages_sent_total", ""))
}

func TestWritePrometheus(t *testing.T) {
	MessagesSent("global", 1)
	ComputationFinished("completed")
	SetSchedulerWorkers(4)

	var buf bytes.Buffer
	require.NoError(t, WritePrometheus(&buf))
	out := buf.String()

	assert.Contains(t, out, "# TYPE gremlin_supersteps_total counter")
	assert.Contains(t, out, "# TYPE gremlin_scheduler_workers gauge")
	assert.Contains(t, out, "gremlin_scheduler_workers 4\n")
	assert.Contains(t, out, `gremlin_messages_sent_total{kind="global"}`)
	assert.Contains(t, out, `gremlin_computations_total{outcome="completed"}`)
	assert.NotContains(t, out, "memstats")
}

func TestEscapeLabel(t *testing.T) {
	assert.Equal(t, `a\"b\\c\nd`, escapeLabel("a\"b\\c\nd"))
	assert.Equal(t, "one line", sanitizeHelp("one\nline"))
}
