package route

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/bft-labs/heartlink/pkg/log"
	"github.com/bft-labs/heartlink/pkg/wire"
)

// Dealer is a client socket with a fixed identity. It keeps reconnecting to
// its router in the background until closed.
type Dealer struct {
	identity string
	addr     string
	opts     Options

	mu  sync.Mutex
	cur *peerConn

	inbox     chan wire.Message
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Dial starts a dealer that connects to addr announcing identity.
// It returns immediately; use Connected to see whether a link is up.
func Dial(identity, addr string, opts Options) *Dealer {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dealer{
		identity: identity,
		addr:     addr,
		opts:     opts,
		inbox:    make(chan wire.Message, opts.InboxSize),
		ctx:      ctx,
		cancel:   cancel,
	}
	d.wg.Add(1)
	go d.connectLoop()
	return d
}

// Identity returns the dealer's fixed identity.
func (d *Dealer) Identity() string {
	return d.identity
}

// Messages returns inbound messages. The channel is closed after Close returns.
func (d *Dealer) Messages() <-chan wire.Message {
	return d.inbox
}

// Connected reports whether a connection to the router is up.
func (d *Dealer) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cur != nil
}

// Send writes msg to the router. It fails with ErrNotConnected while the
// dealer is between connections.
func (d *Dealer) Send(msg wire.Message) error {
	if d.ctx.Err() != nil {
		return ErrClosed
	}
	d.mu.Lock()
	p := d.cur
	d.mu.Unlock()
	if p == nil {
		return ErrNotConnected
	}
	if err := p.write(msg, d.opts.WriteTimeout); err != nil {
		// the read loop notices the closed connection and reconnects
		p.close()
		return fmt.Errorf("route: send to %s: %w", d.addr, err)
	}
	return nil
}

// Close stops reconnecting, drops the connection and waits for the reader.
func (d *Dealer) Close() error {
	d.closeOnce.Do(func() {
		d.cancel()
		d.mu.Lock()
		if d.cur != nil {
			d.cur.close()
		}
		d.mu.Unlock()
		d.wg.Wait()
		close(d.inbox)
	})
	return nil
}

func (d *Dealer) connectLoop() {
	defer d.wg.Done()

	dialer := net.Dialer{Timeout: d.opts.HandshakeTimeout}
	for {
		c, err := dialer.DialContext(d.ctx, "tcp", d.addr)
		if err == nil {
			d.session(c)
		} else if d.ctx.Err() == nil {
			d.opts.Logger.Trace("dial failed", log.String("addr", d.addr), log.Err(err))
		}

		select {
		case <-d.ctx.Done():
			return
		case <-time.After(d.opts.ReconnectInterval):
		}
	}
}

// session announces the identity and reads until the connection fails.
func (d *Dealer) session(c net.Conn) {
	p := &peerConn{id: d.identity, c: c}
	if err := p.write(wire.Message{[]byte(d.identity)}, d.opts.WriteTimeout); err != nil {
		d.opts.Logger.Debug("handshake failed", log.String("addr", d.addr), log.Err(err))
		p.close()
		return
	}

	d.mu.Lock()
	if d.ctx.Err() != nil {
		d.mu.Unlock()
		p.close()
		return
	}
	d.cur = p
	d.mu.Unlock()
	d.opts.Logger.Debug("connected", log.String("addr", d.addr))

	defer func() {
		d.mu.Lock()
		if d.cur == p {
			d.cur = nil
		}
		d.mu.Unlock()
		p.close()
	}()

	br := bufio.NewReader(c)
	for {
		msg, err := wire.ReadMessage(br, d.opts.MaxPart)
		if err != nil {
			if d.ctx.Err() == nil {
				d.opts.Logger.Debug("connection lost", log.String("addr", d.addr), log.Err(err))
			}
			return
		}
		select {
		case d.inbox <- msg:
		case <-d.ctx.Done():
			return
		}
	}
}
