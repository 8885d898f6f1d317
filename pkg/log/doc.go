// Package log provides structured logging for graphrag using zerolog.
//
// A single package-level Logger is initialized once via Init and shared by
// every component; With* helpers attach component-specific fields
// (WithComponent, WithTenant, WithSnapshotID, WithSink) instead of passing a
// logger through every constructor.
package log
