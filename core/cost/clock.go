package cost

import (
	"fmt"
	"time"
)

// ClockMinute is a minute-of-day offset from UTC midnight, 0..1439.
// It marshals to and from "HH:MM" so catalog YAML stays readable.
type ClockMinute int

// MinuteOf converts a wall-clock time to its UTC minute of day.
func MinuteOf(t time.Time) ClockMinute {
	utc := t.UTC()
	return ClockMinute(utc.Hour()*60 + utc.Minute())
}

func (m ClockMinute) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// UnmarshalYAML parses "HH:MM".
func (m *ClockMinute) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}

	var hour, minute int
	if _, err := fmt.Sscanf(raw, "%d:%d", &hour, &minute); err != nil {
		return fmt.Errorf("invalid clock value %q: %w", raw, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("clock value %q out of range", raw)
	}

	*m = ClockMinute(hour*60 + minute)
	return nil
}

// MarshalYAML renders "HH:MM".
func (m ClockMinute) MarshalYAML() (any, error) {
	return m.String(), nil
}
