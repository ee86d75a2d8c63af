// Package task runs named background tasks and joins them on shutdown.
//
// Each task gets its own goroutine and cancel function. An error returned
// by a task, or a panic inside it, is handed to the manager's ErrorHandler
// and the task is marked Failed; other tasks keep running.
//
// # Usage
//
//	m := task.NewManager(logger, nil)
//	if err := m.Start(ctx, heartbeatTask); err != nil {
//	    return err
//	}
//
//	// ... later ...
//	m.CancelAll()
//	if err := m.WaitWithTimeout(5 * time.Second); err != nil {
//	    return err
//	}
//
// # Task States
//
//   - Running: Run has been called
//   - Cancelling: cancel requested, Run has not returned
//   - Finished: Run returned nil (or a cancellation error after cancel)
//   - Failed: Run returned an error or panicked
package task
