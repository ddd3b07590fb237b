// Package tui provides the terminal progress view for `replica clone --tui`.
//
// The view is read-only. It shows the current loop state, the iteration and
// attempt counters, the best score against the threshold, per-iteration
// scores and a short activity log. Pressing q once requests an abort through
// the session's signal directory; pressing it again leaves immediately.
//
// Usage:
//
//	app := tui.NewProgressApp(url, sessionDir, maxIter, threshold, abortFn)
//	program := tui.NewProgressProgram(app)
//	go program.Run()
//
//	// Forward controller progress
//	program.Send(tui.ProgressMsg{Event: ev})
//
//	// Signal completion
//	program.Send(tui.DoneMsg{Report: report, Err: err})
package tui
