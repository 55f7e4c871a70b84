// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks a single collection run through three views:
//  1. [ConfirmView] : Review the playlist, range, interval and tick count
//  2. [CollectView] : Monitor ticks, checkpoints and the current fetch phase
//  3. [ResultView] : Browse captured ticks and the written files
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the collector, providing non-blocking status reporting during a run.
// Stopping a run cancels its context; the collector still writes the final export before the result view opens.
package ui
