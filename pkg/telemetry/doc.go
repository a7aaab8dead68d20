// Package telemetry keeps per-target radar readings and gates them by freshness.
//
// Targets are fixed slots indexed 0..N-1 which are overwritten in place by
// each report frame. Every attribute carries its own update time, and a
// reading is only exposed while it is younger than the staleness window.
package telemetry
