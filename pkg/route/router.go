package route

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/bft-labs/heartlink/pkg/log"
	"github.com/bft-labs/heartlink/pkg/wire"
)

// Router accepts dealer connections and addresses them by identity.
type Router struct {
	opts Options
	ln   net.Listener

	mu    sync.RWMutex
	peers map[string]*peerConn
	raw   map[net.Conn]struct{}

	inbox     chan wire.Message
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Listen binds a router on addr (host:port).
func Listen(addr string, opts Options) (*Router, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("route: bind %s: %w", addr, err)
	}
	opts = opts.withDefaults()
	r := &Router{
		opts:  opts,
		ln:    ln,
		peers: make(map[string]*peerConn),
		raw:   make(map[net.Conn]struct{}),
		inbox: make(chan wire.Message, opts.InboxSize),
		done:  make(chan struct{}),
	}
	r.wg.Add(1)
	go r.acceptLoop()
	return r, nil
}

// Addr returns the bound address.
func (r *Router) Addr() net.Addr {
	return r.ln.Addr()
}

// Messages returns inbound messages as [identity][parts...].
// The channel is closed after Close returns.
func (r *Router) Messages() <-chan wire.Message {
	return r.inbox
}

// Peers returns the identities currently connected, sorted.
func (r *Router) Peers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Send delivers msg[1:] to the peer named by msg[0].
// It fails with ErrHostUnreachable when that peer is not connected or the
// write fails; a failed connection is dropped.
func (r *Router) Send(msg wire.Message) error {
	if len(msg) < 2 {
		return fmt.Errorf("%w: routed message needs identity and payload", wire.ErrMalformedFrame)
	}
	select {
	case <-r.done:
		return ErrClosed
	default:
	}

	id := msg.Identity()
	r.mu.RLock()
	p := r.peers[id]
	r.mu.RUnlock()
	if p == nil {
		return fmt.Errorf("%w: %q", ErrHostUnreachable, id)
	}

	if err := p.write(msg.Strip(), r.opts.WriteTimeout); err != nil {
		r.unregister(p)
		return fmt.Errorf("%w: %q: %v", ErrHostUnreachable, id, err)
	}
	return nil
}

// Close stops accepting, drops every connection and waits for readers.
func (r *Router) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		err = r.ln.Close()

		r.mu.Lock()
		for c := range r.raw {
			_ = c.Close()
		}
		r.peers = make(map[string]*peerConn)
		r.mu.Unlock()

		r.wg.Wait()
		close(r.inbox)
	})
	return err
}

func (r *Router) acceptLoop() {
	defer r.wg.Done()
	for {
		c, err := r.ln.Accept()
		if err != nil {
			select {
			case <-r.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			r.opts.Logger.Debug("accept failed", log.Err(err))
			continue
		}
		if !r.track(c) {
			_ = c.Close()
			return
		}
		r.wg.Add(1)
		go r.serve(c)
	}
}

// track records a raw connection so Close can interrupt its handshake.
func (r *Router) track(c net.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.done:
		return false
	default:
	}
	r.raw[c] = struct{}{}
	return true
}

func (r *Router) untrack(c net.Conn) {
	r.mu.Lock()
	delete(r.raw, c)
	r.mu.Unlock()
	_ = c.Close()
}

// serve runs the handshake and then reads messages from one dealer.
func (r *Router) serve(c net.Conn) {
	defer r.wg.Done()
	defer r.untrack(c)

	br := bufio.NewReader(c)
	_ = c.SetReadDeadline(time.Now().Add(r.opts.HandshakeTimeout))
	hello, err := wire.ReadMessage(br, r.opts.MaxPart)
	if err != nil || len(hello) != 1 || len(hello[0]) == 0 {
		r.opts.Logger.Debug("handshake rejected",
			log.String("remote", c.RemoteAddr().String()),
			log.Err(handshakeErr(err)))
		return
	}
	_ = c.SetReadDeadline(time.Time{})

	p := &peerConn{id: string(hello[0]), c: c}
	if !r.register(p) {
		p.close()
		return
	}
	defer r.unregister(p)
	r.opts.Logger.Trace("peer connected", log.Peer(p.id))

	for {
		msg, err := wire.ReadMessage(br, r.opts.MaxPart)
		if err != nil {
			r.opts.Logger.Trace("peer disconnected", log.Peer(p.id), log.Err(err))
			return
		}
		routed := make(wire.Message, 0, len(msg)+1)
		routed = append(routed, []byte(p.id))
		routed = append(routed, msg...)
		select {
		case r.inbox <- routed:
		case <-r.done:
			return
		}
	}
}

// register installs p, handing over from any older connection with the same identity.
func (r *Router) register(p *peerConn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.done:
		return false
	default:
	}
	if old := r.peers[p.id]; old != nil {
		old.close()
	}
	r.peers[p.id] = p
	return true
}

func (r *Router) unregister(p *peerConn) {
	r.mu.Lock()
	if r.peers[p.id] == p {
		delete(r.peers, p.id)
	}
	r.mu.Unlock()
	p.close()
}

func handshakeErr(err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadHandshake, err)
	}
	return ErrBadHandshake
}
