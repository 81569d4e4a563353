package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

func at(hour, minute int) time.Time {
	return time.Date(2025, time.March, 10, hour, minute, 0, 0, ist)
}

func testConfig() Config {
	return Config{
		Prayer:      Window{Start: 4 * 60, End: 7 * 60},
		Reading:     Window{Start: 19 * 60, End: 20 * 60},
		Maintenance: 30,
		Location:    ist,
	}
}

func TestIsWithinWindow_SameDay(t *testing.T) {
	assert.True(t, IsWithinWindow(240, 420, 240))
	assert.True(t, IsWithinWindow(240, 420, 419))
	assert.False(t, IsWithinWindow(240, 420, 420))
	assert.False(t, IsWithinWindow(240, 420, 239))
}

func TestIsWithinWindow_WrapAround(t *testing.T) {
	assert.True(t, IsWithinWindow(1380, 60, 1380))
	assert.True(t, IsWithinWindow(1380, 60, 1439))
	assert.True(t, IsWithinWindow(1380, 60, 0))
	assert.True(t, IsWithinWindow(1380, 60, 59))
	assert.False(t, IsWithinWindow(1380, 60, 60))
	assert.False(t, IsWithinWindow(1380, 60, 1379))
}

func TestIsWithinWindow_EveryMinuteMatchesPredicate(t *testing.T) {
	windows := []Window{{240, 420}, {1380, 60}, {0, 1439}, {1439, 0}, {600, 600}}
	for _, w := range windows {
		for m := 0; m < minutesPerDay; m++ {
			var want bool
			if w.Start > w.End {
				want = m >= w.Start || m < w.End
			} else {
				want = w.Start <= m && m < w.End
			}
			require.Equal(t, want, IsWithinWindow(w.Start, w.End, m), "window %v minute %d", w, m)
		}
	}
}

func TestNew_RejectsOverlap(t *testing.T) {
	cfg := testConfig()
	cfg.Reading = Window{Start: 6 * 60, End: 8 * 60}

	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrOverlappingWindows)
}

func TestNew_RejectsOverlapAcrossMidnight(t *testing.T) {
	cfg := testConfig()
	cfg.Prayer = Window{Start: 23 * 60, End: 60}
	cfg.Reading = Window{Start: 30, End: 120}

	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrOverlappingWindows)
}

func TestNew_RejectsOutOfRange(t *testing.T) {
	cfg := testConfig()
	cfg.Prayer.End = 1440
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Location = nil
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestClassifier_Periods(t *testing.T) {
	c, err := New(testConfig())
	require.NoError(t, err)

	assert.True(t, c.IsPrayerPeriod(at(5, 0)))
	assert.False(t, c.IsReadingPeriod(at(5, 0)))
	assert.Equal(t, SessionPrayer, c.Current(at(5, 0)))

	assert.True(t, c.IsReadingPeriod(at(19, 30)))
	assert.Equal(t, SessionReading, c.Current(at(19, 30)))

	assert.False(t, c.IsHolyPeriod(at(12, 0)))
	assert.Equal(t, SessionNone, c.Current(at(12, 0)))
}

func TestClassifier_UsesConfiguredZone(t *testing.T) {
	c, err := New(testConfig())
	require.NoError(t, err)

	// 23:45 UTC is 05:15 IST the next morning.
	utc := time.Date(2025, time.March, 9, 23, 45, 0, 0, time.UTC)
	assert.True(t, c.IsPrayerPeriod(utc))
	assert.Equal(t, "2025-03-10", c.CivilDate(utc))
	assert.Equal(t, "03-10", c.MonthDay(utc))
}

func TestClassifier_MaintenanceIsHalfOpen(t *testing.T) {
	c, err := New(testConfig())
	require.NoError(t, err)

	assert.False(t, c.IsMaintenancePeriod(at(6, 59)))
	assert.True(t, c.IsMaintenancePeriod(at(7, 0)))
	assert.True(t, c.IsMaintenancePeriod(at(7, 29)))
	assert.False(t, c.IsMaintenancePeriod(at(7, 30)))

	assert.True(t, c.IsMaintenancePeriod(at(20, 0)))
	assert.False(t, c.IsMaintenancePeriod(at(20, 30)))
}

func TestClassifier_NoMaintenanceWhenZero(t *testing.T) {
	cfg := testConfig()
	cfg.Maintenance = 0
	c, err := New(cfg)
	require.NoError(t, err)

	assert.False(t, c.IsMaintenancePeriod(at(7, 0)))
}

func TestClassifier_MaintenanceAfterMidnightWindow(t *testing.T) {
	cfg := testConfig()
	cfg.Reading = Window{Start: 23 * 60, End: 23*60 + 50}
	c, err := New(cfg)
	require.NoError(t, err)

	assert.True(t, c.IsMaintenancePeriod(at(23, 55)))
	assert.True(t, c.IsMaintenancePeriod(at(0, 10)))
	assert.False(t, c.IsMaintenancePeriod(at(0, 20)))
}
