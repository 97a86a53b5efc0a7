// Package notifier tracks watched elements across DOM snapshots.
//
// Each watcher holds the set of paths its selector matched in the previous
// snapshot. ProcessSnapshot republishes the raw snapshot on dom:changed and
// fires OnAppear and OnDisappear with the path differences. A throttled
// watcher drops callback rounds that arrive inside its window; its path
// set still moves forward.
package notifier
