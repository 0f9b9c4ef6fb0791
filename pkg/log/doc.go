// Package log provides structured protocol capture for the AVDECC engine.
//
// This package defines the Logger interface and Event types for capturing
// ADP, AECP and ACMP traffic together with the engine's own decisions
// (entity online/offline, command retries and timeouts, recovered faults).
// It is separate from operational logging (slog) - protocol capture provides
// a complete machine-readable event trace for debugging and analysis.
//
// # Basic Usage
//
// Applications configure capture by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/avdecc/controller.alog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Every event carries the sub-protocol it relates to and one payload:
//   - FrameEvent: a frame sent or received, with its CBOR encoding
//   - StateChangeEvent: entity discovery and advertising transitions
//   - StatisticEvent: command retries, timeouts, unexpected responses
//   - ErrorEventData: send failures and recovered faults
//
// # File Format
//
// Log files use CBOR encoding with .alog extension. The avdecc-log CLI tool
// provides viewing, filtering, and statistics.
package log
