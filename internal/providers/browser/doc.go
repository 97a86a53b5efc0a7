/*
Package browser drives a real Chromium instance over the DevTools protocol.

# Overview

The Manager launches a local headless browser, or connects to an existing
one through a control URL, the first time a session asks for a page. Every
page lives in its own incognito context so sessions never share cookies or
storage.

A Page implements operation.Page. Its calls run under the caller's context
and through a per-page circuit breaker, so a crashed tab fails fast instead
of stalling every operation until its timeout.

# Snapshots

Snapshot runs a capture script in the page. The script walks the document,
stamps every element with its positional path (attribute data-wh-path) and
returns the element tree as JSON, which is decoded with dom.Decode. Elements
are later addressed by that attribute when the matcher could not generate a
selector for them.

Built on:
  - go-rod: browser launch, connection and page control
*/
package browser
