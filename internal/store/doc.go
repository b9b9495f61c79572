// Package store provides the scalar key/value persistence layer used
// by the priority engine.
//
// It currently backs:
//   - Throttle records (per source+category suppression windows)
//   - Dismiss / learning-signal day counters
package store
