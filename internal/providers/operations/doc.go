// Package operations provides the built-in operations: click, scroll,
// extract, highlight, get, type, navigate and screenshot.
//
// Every operation acts through the operation.Page in its context and reads
// its target from config "selector" or from the container's matched
// elements. Operations that touch browser state retry a few times
// (config "retries", "retryDelayMs"), since a freshly rendered element may
// not be interactable yet. All of them are safe to repeat.
//
// Built on:
//   - goquery: field extraction from outer HTML
//   - bluemonday: markup stripping and HTML sanitization
//   - chardet: charset detection for non UTF-8 input
//   - mimetype: screenshot format sniffing
package operations
