package machine

import (
	"github.com/bft-labs/heartlink/pkg/event"
	"github.com/bft-labs/heartlink/pkg/fsm"
	"github.com/bft-labs/heartlink/pkg/log"
)

// NewServer builds the server machine for the configured client peers.
//
// Startup moves to Online once every peer is up. Online falls back to
// Startup as soon as any peer goes down.
func NewServer(peers []string, src fsm.Source, opts ...Option) (*Machine, error) {
	m, err := build("server", src, NewLinkTable(peers), opts)
	if err != nil {
		return nil, err
	}
	for _, l := range m.links.Snapshot() {
		m.logger.Info("add client", log.Peer(l.Peer))
	}

	m.AddObserver(event.KindLinkUp, func(ev event.Event) bool {
		if !m.links.Set(ev.Peer, true) {
			m.logger.Debug("link up from unconfigured peer", log.Peer(ev.Peer))
			return false
		}
		return m.Current().ID == Startup && m.links.AllUp()
	})
	m.AddObserver(event.KindLinkDown, func(ev event.Event) bool {
		if !m.links.Set(ev.Peer, false) {
			m.logger.Debug("link down from unconfigured peer", log.Peer(ev.Peer))
			return false
		}
		return m.Current().ID == Online
	})
	return m, nil
}
