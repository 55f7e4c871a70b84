// Package models defines the domain entities for chart collection.
//
// The package contains:
//   - [ChartRecord] : One track's enriched snapshot at one capture tick
//   - [AudioFeatures] : The audio-analysis attributes carried by a record
//   - [CollectionRun] : The parameters and accumulated buffer of one invocation
//   - [Interval] : The polling unit (hour, day, week, month, year)
//   - [RetryPolicy] : Tuning for the rate-limited API client
//
// Month and year intervals are fixed approximations (30 and 365 days).
// They are not calendar-aware, so tick timestamps drift from calendar boundaries over long runs.
package models
