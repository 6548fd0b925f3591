// Package logging assembles the structured slog loggers used across the
// daemon. It owns the console/JSON handler selection, level and output
// plumbing, and attribute helper aliases, plus a no-op logger for tests and
// wiring code that cannot fail.
package logging
