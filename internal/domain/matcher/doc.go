// Package matcher turns container definitions and a DOM snapshot into a
// container graph.
//
// Matching is a pure function of its inputs: the same definitions and
// snapshot always yield the same graph, and every dom path in the graph
// exists in the snapshot. Large snapshots are cut to Options bounds first;
// Graph.Truncated records that anything was cut.
package matcher
