// internal/domain/period/classifier.go
package period

import (
	"errors"
	"fmt"
	"time"
)

const minutesPerDay = 24 * 60

// ErrOverlappingWindows is returned when the prayer and reading windows share a minute.
var ErrOverlappingWindows = errors.New("prayer and reading windows overlap")

// Session names the holy sub-period an instant falls into.
type Session int

const (
	SessionNone Session = iota
	SessionPrayer
	SessionReading
)

func (s Session) String() string {
	switch s {
	case SessionPrayer:
		return "Prayer"
	case SessionReading:
		return "Bible Reading"
	default:
		return "None"
	}
}

// Window is a daily interval in minutes since midnight. Start > End spans midnight.
type Window struct {
	Start int
	End   int
}

// Contains reports whether minute falls inside the window.
func (w Window) Contains(minute int) bool {
	return IsWithinWindow(w.Start, w.End, minute)
}

// IsWithinWindow matches start <= now < end, or now >= start || now < end when the
// window wraps around midnight. An empty window (start == end) matches nothing.
func IsWithinWindow(start, end, now int) bool {
	if start > end {
		return now >= start || now < end
	}
	return start <= now && now < end
}

// Config is the immutable window configuration shared by the classifier and the call flow.
type Config struct {
	Prayer      Window
	Reading     Window
	Maintenance int // minutes of blackout after either window ends
	Location    *time.Location
}

// Validate checks bounds and that the two holy windows never overlap.
func (c Config) Validate() error {
	for name, w := range map[string]Window{"prayer": c.Prayer, "reading": c.Reading} {
		if w.Start < 0 || w.Start >= minutesPerDay || w.End < 0 || w.End >= minutesPerDay {
			return fmt.Errorf("%s window %d-%d is outside 0..%d", name, w.Start, w.End, minutesPerDay-1)
		}
	}
	if c.Maintenance < 0 || c.Maintenance >= minutesPerDay {
		return fmt.Errorf("maintenance duration %d is outside 0..%d", c.Maintenance, minutesPerDay-1)
	}
	if c.Location == nil {
		return errors.New("location is required")
	}
	for m := 0; m < minutesPerDay; m++ {
		if c.Prayer.Contains(m) && c.Reading.Contains(m) {
			return fmt.Errorf("%w at minute %d", ErrOverlappingWindows, m)
		}
	}
	return nil
}

// Classifier answers which named window an instant falls into. It holds no clock;
// callers pass the instant explicitly.
type Classifier struct {
	cfg Config
}

func New(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{cfg: cfg}, nil
}

func (c *Classifier) minuteOfDay(now time.Time) int {
	local := now.In(c.cfg.Location)
	return local.Hour()*60 + local.Minute()
}

func (c *Classifier) IsPrayerPeriod(now time.Time) bool {
	return c.cfg.Prayer.Contains(c.minuteOfDay(now))
}

func (c *Classifier) IsReadingPeriod(now time.Time) bool {
	return c.cfg.Reading.Contains(c.minuteOfDay(now))
}

// IsHolyPeriod is the union of the prayer and reading windows.
func (c *Classifier) IsHolyPeriod(now time.Time) bool {
	return c.IsPrayerPeriod(now) || c.IsReadingPeriod(now)
}

// IsMaintenancePeriod reports whether now is in [end, end+maintenance) of either window.
func (c *Classifier) IsMaintenancePeriod(now time.Time) bool {
	if c.cfg.Maintenance == 0 {
		return false
	}
	minute := c.minuteOfDay(now)
	for _, w := range []Window{c.cfg.Prayer, c.cfg.Reading} {
		if IsWithinWindow(w.End, (w.End+c.cfg.Maintenance)%minutesPerDay, minute) {
			return true
		}
	}
	return false
}

// Current returns the holy sub-period for now, or SessionNone.
func (c *Classifier) Current(now time.Time) Session {
	switch {
	case c.IsPrayerPeriod(now):
		return SessionPrayer
	case c.IsReadingPeriod(now):
		return SessionReading
	default:
		return SessionNone
	}
}

// CivilDate formats now as YYYY-MM-DD in the configured zone.
func (c *Classifier) CivilDate(now time.Time) string {
	return now.In(c.cfg.Location).Format("2006-01-02")
}

// MonthDay formats now as MM-DD in the configured zone.
func (c *Classifier) MonthDay(now time.Time) string {
	return now.In(c.cfg.Location).Format("01-02")
}
