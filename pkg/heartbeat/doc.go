// Package heartbeat implements the PING/PONG liveness tasks.
//
// ServerTask binds an identity router and, every Interval, decays each
// configured peer's liveness counter and sends it a PING. A PONG revives the
// peer. Link changes are posted to an event queue as LinkUp and LinkDown.
//
// ClientTask dials the server with a fixed identity, answers every PING with
// a PONG, and posts LinkUp for each PING it sees.
//
// Both tasks absorb transport errors. They stop when their context is
// cancelled and close their socket on the way out.
//
// # Usage
//
//	q := event.NewQueue(0)
//	srv := heartbeat.NewServerTask(heartbeat.ServerConfig{
//	    Endpoint: "0.0.0.0:6801",
//	    Peers:    []string{"A", "B", "C"},
//	}, q, heartbeat.WithLogger(logger))
//	go srv.Run(ctx)
package heartbeat
