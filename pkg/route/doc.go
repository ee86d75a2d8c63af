// Package route implements a small identity-routed transport over TCP.
//
// A Router listens for Dealers. Each Dealer connects with a fixed identity,
// announced in a one-part handshake message, and the Router addresses it by
// that identity from then on. Sending to an identity that is not connected
// fails synchronously with ErrHostUnreachable (mandatory routing), so callers
// can tell "could not send" apart from "sent but no reply yet".
//
// # Usage
//
//	r, err := route.Listen("127.0.0.1:6801", route.Options{})
//	defer r.Close()
//	err = r.Send(wire.Routed("client-a", wire.Ping))
//	if errors.Is(err, route.ErrHostUnreachable) { ... }
//
//	d := route.Dial("client-a", "127.0.0.1:6801", route.Options{})
//	defer d.Close()
//	msg := <-d.Messages()
package route
