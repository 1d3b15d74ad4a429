package hlc

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// HLC is a hybrid logical clock timestamp: wall-clock microseconds paired
// with a logical counter that breaks ties within the same microsecond.
// Timestamps are totally ordered by (Physical, Logical), compared
// lexicographically.
type HLC struct {
	Physical int64 // microseconds since the Unix epoch
	Logical  int64
}

// Compare returns -1, 0, 1 based on lexicographic (Physical, Logical) order.
func (h HLC) Compare(o HLC) int {
	if h.Physical != o.Physical {
		if h.Physical < o.Physical {
			return -1
		}
		return 1
	}
	if h.Logical != o.Logical {
		if h.Logical < o.Logical {
			return -1
		}
		return 1
	}
	return 0
}

// Before reports whether h orders strictly before o.
func (h HLC) Before(o HLC) bool { return h.Compare(o) < 0 }

// After reports whether h orders strictly after o.
func (h HLC) After(o HLC) bool { return h.Compare(o) > 0 }

// IsZero reports whether h is the zero timestamp.
func (h HLC) IsZero() bool { return h.Physical == 0 && h.Logical == 0 }

// String renders the timestamp as "physical.logical".
func (h HLC) String() string {
	return strconv.FormatInt(h.Physical, 10) + "." + strconv.FormatInt(h.Logical, 10)
}

// Parse reads a timestamp in the "physical.logical" form produced by String.
// A bare integer is accepted as a physical value with logical 0.
func Parse(s string) (HLC, error) {
	phys, logic, found := strings.Cut(s, ".")
	p, err := strconv.ParseInt(phys, 10, 64)
	if err != nil {
		return HLC{}, fmt.Errorf("hlc: invalid physical component %q", phys)
	}
	if !found {
		return HLC{Physical: p}, nil
	}
	l, err := strconv.ParseInt(logic, 10, 64)
	if err != nil {
		return HLC{}, fmt.Errorf("hlc: invalid logical component %q", logic)
	}
	return HLC{Physical: p, Logical: l}, nil
}

// NowMicros returns current time in microseconds since the Unix epoch.
var NowMicros = func() int64 { return time.Now().UnixMicro() }

// Clock issues strictly increasing HLC timestamps per process.
type Clock struct {
	mu   sync.Mutex
	last HLC
}

// NewClock creates a new Clock.
func NewClock() *Clock { return &Clock{} }

// Now returns a timestamp strictly greater than every timestamp previously
// returned by this Clock. If the wall clock stalls or regresses, the logical
// counter advances instead of waiting.
func (c *Clock) Now() HLC {
	c.mu.Lock()
	defer c.mu.Unlock()

	us := NowMicros()
	if us > c.last.Physical {
		c.last = HLC{Physical: us}
	} else {
		c.last.Logical++
	}
	return c.last
}

// Observe merges a timestamp received from another node and returns a local
// timestamp strictly greater than both the remote one and every timestamp
// previously returned by this Clock.
func (c *Clock) Observe(remote HLC) HLC {
	c.mu.Lock()
	defer c.mu.Unlock()

	us := NowMicros()
	switch {
	case us > c.last.Physical && us > remote.Physical:
		c.last = HLC{Physical: us}
	case remote.After(c.last):
		c.last = HLC{Physical: remote.Physical, Logical: remote.Logical + 1}
	default:
		c.last.Logical++
	}
	return c.last
}
