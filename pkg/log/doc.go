// Package log provides a logging abstraction for heartlink components.
//
// This package defines a Logger interface that can be implemented by
// any logging library. A zerolog adapter, an asynchronous zerolog adapter
// and a no-op logger for testing are provided.
//
// # Usage
//
//	logger := log.NewZerologAdapter(zerolog.InfoLevel)
//	hb := log.Named(logger, "heartbeat")
//	hb.Trace("ping sent", log.Peer("client-a"))
//
// # Asynchronous output
//
// AsyncAdapter queues log lines through a diode ring buffer so the
// heartbeat goroutines never block on the terminal. Call Detach before
// joining background tasks at shutdown: it drains the buffer and switches
// the adapter to synchronous output.
//
//	logger := log.NewAsyncAdapter(os.Stderr, zerolog.InfoLevel)
//	defer logger.Detach()
package log
