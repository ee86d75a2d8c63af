package machine

import (
	"github.com/bft-labs/heartlink/pkg/event"
	"github.com/bft-labs/heartlink/pkg/fsm"
)

// NewClient builds the client machine. Startup moves to Online on the
// first server LinkUp; Online returns to Startup on LinkDown.
func NewClient(src fsm.Source, opts ...Option) (*Machine, error) {
	m, err := build("client", src, nil, opts)
	if err != nil {
		return nil, err
	}

	// every PING produces a LinkUp; only the first one matters
	m.AddObserver(event.KindLinkUp, func(event.Event) bool {
		return m.Current().ID == Startup
	})
	m.AddObserver(event.KindLinkDown, func(event.Event) bool {
		return m.Current().ID == Online
	})
	return m, nil
}
