package domain

import (
	"time"
	_ "time/tzdata"
)

// DefaultTimezone is the civil timezone of the panel.
const DefaultTimezone = "America/Sao_Paulo"

// Civil formats used for registration, monitor and closure stamps.
const (
	CivilDateLayout  = "2006-01-02"
	CivilHourLayout  = "15:04"
	CivilStampLayout = "2006-01-02 15:04"
)

// Clock renders the current time in the civil timezone.
type Clock struct {
	Loc *time.Location
	Now func() time.Time
}

// NewClock loads tz (DefaultTimezone when empty) and uses time.Now.
func NewClock(tz string) (Clock, error) {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Clock{}, err
	}
	return Clock{Loc: loc, Now: time.Now}, nil
}

// Time returns now in the civil timezone.
func (c Clock) Time() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Loc
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc)
}

// DateHour returns the civil date and hour:minute for now.
func (c Clock) DateHour() (string, string) {
	t := c.Time()
	return t.Format(CivilDateLayout), t.Format(CivilHourLayout)
}

// Stamp returns "YYYY-MM-DD HH:MM" for now.
func (c Clock) Stamp() string {
	return c.Time().Format(CivilStampLayout)
}
