// Package tasks captures playlist charts over time with real-time progress reporting.
//
// # Core Operations
//
//  1. [Fetcher.Snapshot] : One capture of the playlist
//     - Fetches the current listing (one rate-limited call)
//     - Fetches audio features in batches of at most 100 ids, pausing after each batch
//     - Resolves the primary artist's genres per track, pausing before each lookup
//     - Drops entries with no track or no audio features as typed [Skip] outcomes
//
//  2. [Collector.Run] : Every tick of a [models.CollectionRun]
//     - Appends each snapshot to the run buffer
//     - Writes a checkpoint whenever the buffer size lands on a multiple of the checkpoint size
//     - Writes the final export after the last tick, or after cancellation
//
// # Failure Policy
//
// A genre lookup failure only costs that record its genres ("Unknown").
// A listing or audio-feature failure aborts the snapshot, and the collector records an empty tick.
// A checkpoint failure is logged and the run continues.
//
// # Progress Reporting
//
// # All operations use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Implementation
//
// [Collector] depends on the [Snapshotter] and [Sink] interfaces:
//   - [Fetcher] : services.Service calls wrapped by a ratelimit.Client
//   - formatter.FileSink : JSON checkpoints and the CSV export
package tasks
