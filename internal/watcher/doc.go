// Package watcher records the paths of files whose content changed on disk.
//
// fsnotify events are forwarded to a run loop that keeps write events only
// and appends their paths to a stale buffer. Consumers drain the buffer,
// act on the snapshot and then clear exactly what they drained.
package watcher
