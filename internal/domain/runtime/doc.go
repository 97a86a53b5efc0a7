/*
Package runtime drives one browser session: it turns snapshots into
container graphs and connects the matcher, the change notifier and the
binding rules.

# Overview

A Controller holds the session's current graph and focus. OnSnapshot runs
under a mutex, builds the next graph, annotates it with the containers that
appeared and vanished, and swaps it in atomically. It then queues the
snapshot for the change notifier, followed by container:<id>:discovered and
container:<id>:lost events.

# Dispatch

dom:changed and container events are delivered by a per-controller worker in
the order the snapshots produced them. Event rules subscribed to those topics
therefore run after OnSnapshot returned and never delay the next snapshot. Flush waits
for everything queued so far.

# Focus

The focus is the newly discovered container with the highest confidence,
the last one winning a tie. Snapshots that discover nothing keep the
previous focus while its container is still present.
*/
package runtime
