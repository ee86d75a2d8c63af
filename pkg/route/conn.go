package route

import (
	"net"
	"sync"
	"time"

	"github.com/bft-labs/heartlink/pkg/wire"
)

// peerConn is one established connection. Writes are serialized.
type peerConn struct {
	id string
	c  net.Conn

	wmu sync.Mutex
}

func (p *peerConn) write(msg wire.Message, timeout time.Duration) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	if err := p.c.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return wire.WriteMessage(p.c, msg)
}

func (p *peerConn) close() {
	_ = p.c.Close()
}
