// Package log provides Drover's structured logging facade and utilities.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Internally it is backed by Go's
// standard library slog via a custom handler that preserves the
// formatter/outputs pipeline, so slog-aware libraries can interoperate while
// output stays consistent across the codebase.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("fetcher"))
//	l.Info("claimed batch", log.Int("count", 3))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config supporting text
// or JSON formatting. RedirectStdLog routes standard library logs (emitted by
// Pebble) through the facade.
package log
