package policy

import (
	"fmt"
	"time"

	"github.com/getmockd/chaoskit/pkg/chance"
)

// LatencyKind tags the shape of a LatencySpec.
type LatencyKind int

const (
	// LatencyFixed stalls for exactly Min.
	LatencyFixed LatencyKind = iota + 1
	// LatencyRange stalls for a uniform duration in [Min, Max].
	LatencyRange
)

// LatencySpec describes how long a latency effect stalls the caller.
type LatencySpec struct {
	Kind LatencyKind
	Min  time.Duration
	Max  time.Duration
}

// Fixed returns a spec that always stalls for d.
func Fixed(d time.Duration) LatencySpec {
	return LatencySpec{Kind: LatencyFixed, Min: d, Max: d}
}

// Range returns a spec that stalls for a uniform duration between lo and hi
// inclusive. It is not validated; see Validate.
func Range(lo, hi time.Duration) LatencySpec {
	return LatencySpec{Kind: LatencyRange, Min: lo, Max: hi}
}

// FixedMillis is Fixed in milliseconds, the unit policy documents use.
func FixedMillis(ms int64) LatencySpec { return Fixed(time.Duration(ms) * time.Millisecond) }

// RangeMillis is Range in milliseconds.
func RangeMillis(lo, hi int64) LatencySpec {
	return Range(time.Duration(lo)*time.Millisecond, time.Duration(hi)*time.Millisecond)
}

// Validate checks the spec shape and bounds.
func (l LatencySpec) Validate() error {
	switch l.Kind {
	case LatencyFixed:
		if l.Min < 0 {
			return fmt.Errorf("fixed latency must be >= 0, got %v", l.Min)
		}
	case LatencyRange:
		if l.Min < 0 {
			return fmt.Errorf("latency min must be >= 0, got %v", l.Min)
		}
		if l.Max < l.Min {
			return fmt.Errorf("latency max (%v) must be >= min (%v)", l.Max, l.Min)
		}
	default:
		return fmt.Errorf("unsupported latency kind %d", l.Kind)
	}
	return nil
}

// Duration computes one concrete delay from the spec. A range draws a whole
// number of milliseconds inside its bounds, both ends included. A range that
// holds no whole millisecond is drawn in nanoseconds.
func (l LatencySpec) Duration(src chance.Source) (time.Duration, error) {
	if err := l.Validate(); err != nil {
		return 0, err
	}
	if l.Kind == LatencyFixed {
		return l.Min, nil
	}

	lo, hi := l.Min/time.Millisecond, l.Max/time.Millisecond
	if l.Min%time.Millisecond != 0 {
		lo++
	}
	if lo > hi {
		d, err := chance.Between(src, int64(l.Min), int64(l.Max))
		return time.Duration(d), err
	}
	ms, err := chance.Between(src, int64(lo), int64(hi))
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func (l LatencySpec) String() string {
	switch l.Kind {
	case LatencyFixed:
		return l.Min.String()
	case LatencyRange:
		return l.Min.String() + ".." + l.Max.String()
	default:
		return "invalid"
	}
}
