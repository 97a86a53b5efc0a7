// Package binding holds declarative rules that turn messages and bus events
// into operation calls.
//
// A Rule has a trigger (a message type, or an event topic pattern), a
// target (a fixed container id, or a resolver evaluated against the current
// graph when the rule fires) and an action (an operation id plus config).
// Catalog rules may write their resolver as a short JavaScript expression,
// which runs in a fresh goja VM with a timeout.
//
// Every dispatch publishes operation:<type>:execute on the bus, so event
// rules can chain; chains stop after MaxChainDepth hops.
package binding
