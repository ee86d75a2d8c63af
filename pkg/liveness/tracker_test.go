package liveness

import (
	"testing"

	"pgregory.net/rapid"
)

func TestNewTracker_StartsAway(t *testing.T) {
	tr := NewTracker([]string{"a", "b", "a"})

	if got := tr.Peers(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Peers() = %v, want [a b]", got)
	}
	for _, id := range tr.Peers() {
		if c, _ := tr.Counter(id); c != Away {
			t.Errorf("counter(%s) = %v, want AWAY", id, c)
		}
	}
	if len(tr.Up()) != 0 {
		t.Errorf("Up() = %v, want none", tr.Up())
	}
}

func TestDecay_LinkDownAfterFourMissedTicks(t *testing.T) {
	tr := NewTracker([]string{"a"})
	tr.Pong("a")

	// the tick that sends the PING moves ALIVE to WAIT_PONG
	if got := tr.Decay("a"); got != NoChange {
		t.Fatalf("first decay = %v", got)
	}

	downs := 0
	for tick := 1; tick <= 4; tick++ {
		if tr.Decay("a") == Down {
			downs++
			if tick != 4 {
				t.Errorf("LinkDown on missed tick %d, want 4", tick)
			}
		}
	}
	if c, _ := tr.Counter("a"); c != Away {
		t.Fatalf("counter = %v after 4 missed ticks, want AWAY", c)
	}

	for i := 0; i < 10; i++ {
		if tr.Decay("a") != NoChange {
			downs++
		}
	}
	if downs != 1 {
		t.Errorf("LinkDown count = %d, want 1", downs)
	}
	if c, _ := tr.Counter("a"); c != Away {
		t.Errorf("counter = %v, want clamped at AWAY", c)
	}
}

func TestPong_Transitions(t *testing.T) {
	tests := []struct {
		from Counter
		want Transition
	}{
		{Alive, NoChange},
		{WaitPong, NoChange},
		{Missing2, Up},
		{Missing3, Up},
		{Missing4, Up},
		{Away, Up},
	}
	for _, tt := range tests {
		t.Run(tt.from.String(), func(t *testing.T) {
			tr := NewTracker([]string{"a"})
			tr.counters["a"] = tt.from

			if got := tr.Pong("a"); got != tt.want {
				t.Errorf("Pong from %v = %v, want %v", tt.from, got, tt.want)
			}
			if c, _ := tr.Counter("a"); c != Alive {
				t.Errorf("counter = %v, want ALIVE", c)
			}
		})
	}
}

func TestPong_RepeatedWhileAliveIsSilent(t *testing.T) {
	tr := NewTracker([]string{"a"})
	ups := 0
	for i := 0; i < 5; i++ {
		if tr.Pong("a") == Up {
			ups++
		}
	}
	if ups != 1 {
		t.Errorf("LinkUp count = %d, want 1", ups)
	}
}

func TestUnknownPeerIsIgnored(t *testing.T) {
	tr := NewTracker([]string{"a"})

	if tr.Known("ghost") {
		t.Error("Known(ghost) = true")
	}
	if tr.Pong("ghost") != NoChange || tr.Decay("ghost") != NoChange {
		t.Error("unknown peer produced a transition")
	}
	if _, ok := tr.Counter("ghost"); ok {
		t.Error("unknown peer got a counter")
	}
}

func TestCounter_String(t *testing.T) {
	if Missing4.String() != "MISSING_4" || Counter(7).String() != "Counter(7)" {
		t.Errorf("unexpected names %s, %s", Missing4, Counter(7))
	}
}

// TestTracker_DecayProperties drives random tick/pong sequences and checks
// the counter invariants after every step.
func TestTracker_DecayProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tr := NewTracker([]string{"p"})
		ops := rapid.SliceOfN(rapid.Bool(), 1, 200).Draw(t, "ops") // true = tick, false = pong

		// a LinkUp may repeat after a short gap, but LinkDown never does
		downSinceUp := true
		for i, tick := range ops {
			before, _ := tr.Counter("p")
			var got Transition
			if tick {
				got = tr.Decay("p")
			} else {
				got = tr.Pong("p")
			}
			after, _ := tr.Counter("p")

			if after < Away || after > Alive {
				t.Fatalf("step %d: counter %d out of range", i, after)
			}
			if tick {
				if before == Away && after != Away {
					t.Fatalf("step %d: tick moved counter off AWAY", i)
				}
				if before > Away && after != before-1 {
					t.Fatalf("step %d: tick %v -> %v, want decrement by one", i, before, after)
				}
				if (got == Down) != (before == Missing4) {
					t.Fatalf("step %d: tick from %v gave %v", i, before, got)
				}
			} else {
				if after != Alive {
					t.Fatalf("step %d: pong left counter at %v", i, after)
				}
				if (got == Up) != (before < WaitPong) {
					t.Fatalf("step %d: pong from %v gave %v", i, before, got)
				}
			}

			switch got {
			case Up:
				downSinceUp = false
			case Down:
				if downSinceUp {
					t.Fatalf("step %d: second LinkDown without a LinkUp", i)
				}
				downSinceUp = true
			}
		}
	})
}
