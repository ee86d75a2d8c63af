// Package heartlink provides an embeddable fixed-identity heartbeat service.
//
// A server polls a fixed list of client identities with PING frames and
// moves from Startup to Online once every client answers. A client answers
// every PING with a PONG and goes Online on the first one. Link changes
// travel as events through a queue into a single-threaded state loop.
//
// # Basic Usage
//
//	svc, err := heartlink.New(heartlink.Config{
//	    Role:     heartlink.RoleServer,
//	    Endpoint: "0.0.0.0:6801",
//	    Peers:    []string{"A", "B", "C"},
//	}, heartlink.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//
//	go func() {
//	    <-sigCh
//	    svc.Terminate()
//	}()
//	return svc.Run(ctx)
//
// # Plugins
//
// Implement [Plugin] and pass it via [WithPlugin]. Plugins receive an
// event poster and may start their own tasks with [Service.StartTask].
//
// # Shutdown
//
// After the state loop exits, Run cancels every task, runs the hooks
// registered with [WithBeforeJoin], and waits up to ShutdownTimeout for the
// tasks to return. A stuck task makes Run return [ErrShutdownTimeout].
package heartlink
