package metrics

import (
	"expvar"
	"fmt"
	"io"
	"sort"
	"strings"
)

type meta struct {
	typ, help string
	isMap     bool
	label     string
}

var metas = map[string]meta{
	"gremlin_messages_sent_total":     {typ: "counter", help: "Messages sent between vertices", isMap: true, label: "kind"},
	"gremlin_messages_combined_total": {typ: "counter", help: "Messages folded by a combiner", isMap: true, label: "kind"},
	"gremlin_computations_total":      {typ: "counter", help: "Graph computations finished", isMap: true, label: "outcome"},
	"gremlin_supersteps_total":        {typ: "counter", help: "Number of supersteps executed", isMap: false},
	"gremlin_vertex_executions_total": {typ: "counter", help: "Number of vertex executions", isMap: false},
	"gremlin_vertex_retries_total":    {typ: "counter", help: "Number of retried vertex executions", isMap: false},
	"gremlin_scheduler_workers":       {typ: "gauge", help: "Number of scheduler workers", isMap: false},
	"gremlin_scheduler_queued_total":  {typ: "counter", help: "Number of tasks scheduled", isMap: false},
	"gremlin_traversers_total":        {typ: "counter", help: "Traversers moved between vertices", isMap: false},
}

// WritePrometheus renders the gremlin_* expvar metrics in Prometheus text
// exposition format. Other expvar variables are skipped.
func WritePrometheus(w io.Writer) error {
	names := make([]string, 0, len(metas))
	expvar.Do(func(kv expvar.KeyValue) {
		if _, ok := metas[kv.Key]; ok {
			names = append(names, kv.Key)
		}
	})
	sort.Strings(names)

	for _, name := range names {
		m := metas[name]
		if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, sanitizeHelp(m.help), name, m.typ); err != nil {
			return err
		}
		v := expvar.Get(name)
		if !m.isMap {
			if _, err := fmt.Fprintf(w, "%s %s\n", name, v.String()); err != nil {
				return err
			}
			continue
		}
		mp, ok := v.(*expvar.Map)
		if !ok {
			continue
		}
		sub := make([]expvar.KeyValue, 0, 8)
		mp.Do(func(kv expvar.KeyValue) { sub = append(sub, kv) })
		sort.Slice(sub, func(i, j int) bool { return sub[i].Key < sub[j].Key })
		for _, kv := range sub {
			if _, err := fmt.Fprintf(w, "%s{%s=\"%s\"} %s\n", name, m.label, escapeLabel(kv.Key), kv.Value.String()); err != nil {
				return err
			}
		}
	}
	return nil
}

func sanitizeHelp(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

// escapeLabel escapes backslash, double-quote, and newline per the text format.
func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
