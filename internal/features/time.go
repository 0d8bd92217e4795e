package features

import (
	"math"
	"time"
)

type Season int

const (
	Winter Season = iota
	Spring
	Summer
	Fall
)

var seasonNames = [...]string{"WINTER", "SPRING", "SUMMER", "FALL"}

func (s Season) String() string {
	if s < Winter || s > Fall {
		return "UNKNOWN"
	}
	return seasonNames[s]
}

// SeasonOf maps a month to its meteorological season.
func SeasonOf(m time.Month) Season {
	switch m {
	case time.December, time.January, time.February:
		return Winter
	case time.March, time.April, time.May:
		return Spring
	case time.June, time.July, time.August:
		return Summer
	}
	return Fall
}

// Time holds the calendar features of a trip start.
type Time struct {
	Hour       int // 0-23
	WeekOfYear int // Monday-first week number, days before the first Monday are week 0
	DayOfWeek  int // Sunday = 0
	Season     Season
}

func TimeFeatures(t time.Time) Time {
	return Time{
		Hour:       t.Hour(),
		WeekOfYear: mondayWeek(t),
		DayOfWeek:  int(t.Weekday()),
		Season:     SeasonOf(t.Month()),
	}
}

// mondayWeek matches strftime's %W.
func mondayWeek(t time.Time) int {
	yday := t.YearDay() - 1
	mondayBased := (int(t.Weekday()) + 6) % 7
	return (yday + 7 - mondayBased) / 7
}

// Periods used for the sine/cosine encoding.
const (
	HourPeriod = 24
	WeekPeriod = 52
	DayPeriod  = 7
)

// Cyclical places v on the unit circle so that the first and last values of
// a period end up next to each other.
func Cyclical(v, period float64) (sin, cos float64) {
	a := v * 2 * math.Pi / period
	return math.Sin(a), math.Cos(a)
}
