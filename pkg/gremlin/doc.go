// Package gremlin is the public facade over the traversal pipeline and the
// graph computer. It re-exports the core types and exposes a Runtime that
// stores named graphs, runs traversals locally or as vertex programs, and
// keeps the checkpoints computations leave behind.
package gremlin
