// Package eventbus is the in-process publish/subscribe hub shared by the
// change notifier, the binding registry and outside listeners.
//
// Topics are colon separated ("container:feed:discovered"). A subscription
// pattern may use "*" for exactly one segment. Emit is synchronous: it runs
// every matching handler in subscription order and logs handler failures
// without stopping delivery.
package eventbus
