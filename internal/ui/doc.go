// Package ui provides terminal UI components for the fieldlink installer.
//
// This package uses Bubble Tea and Lipgloss to render polished terminal output.
// Most components follow a "run once and exit" pattern: they render output
// compellingly but don't require user interaction. The firmware upload is the
// exception and runs a live Bubble Tea program while chunks are sent.
//
// # Architecture
//
// The UI package provides these component types:
//
//   - Header: Command banner showing operation name and parameters
//   - Progress: Progress bar with step list showing real-time status
//   - Result: Success/failure boxes with styled information
//   - LogBox: Device log lines relayed over the diagnostic channel
//
// UploadRunner orchestrates the header → progress → result flow for a
// firmware upload. On a terminal it drives a Bubble Tea model; otherwise
// it prints one line per finished step.
//
// # Usage Pattern
//
//	runner := ui.NewUploadRunner(ui.UploadRunnerConfig{
//	    Command: "fieldlink upload firmware.bin",
//	    Params:  map[string]string{"Device": "10.0.0.2:8470"},
//	    Total:   len(image),
//	})
//
//	err := runner.Run(ctx, func(r ui.Reporter) error {
//	    r.Step(ui.UploadStepConnect, ui.StepRunning, "")
//	    // ... do work ...
//	    r.Bytes(sent)
//	    return nil
//	})
//
// # Logging Integration
//
// This package expects logging to be controlled via the FIELDLINK_LOG_LEVEL
// environment variable. When unset or empty, zap logging is silent, allowing
// the curated UI output to be displayed cleanly.
package ui
