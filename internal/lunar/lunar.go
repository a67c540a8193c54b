// Package lunar wraps the lunisolar calendar conversion used for
// dual-calendar birth dates. Conversions are pure functions over the
// underlying lunar-go tables.
package lunar

import (
	"fmt"
	"time"

	"github.com/6tail/lunar-go/calendar"

	"consult-queue-backend/internal/model"
)

// Date is a lunar calendar date. LeapMonth marks the intercalary month.
type Date struct {
	Year      int  `json:"year"`
	Month     int  `json:"month"`
	Day       int  `json:"day"`
	LeapMonth bool `json:"isLeapMonth"`
}

// SolarToLunar converts a solar date to its lunar equivalent.
func SolarToLunar(year, month, day int) Date {
	l := calendar.NewSolar(year, month, day, 12, 0, 0).GetLunar()
	m := l.GetMonth()
	leap := m < 0
	if leap {
		m = -m
	}
	return Date{Year: l.GetYear(), Month: m, Day: l.GetDay(), LeapMonth: leap}
}

// LunarToSolar converts a lunar date (with leap-month flag) back to solar.
func LunarToSolar(year, month, day int, leapMonth bool) (y, m, d int) {
	if leapMonth {
		month = -month
	}
	s := calendar.NewLunar(year, month, day, 12, 0, 0).GetSolar()
	return s.GetYear(), s.GetMonth(), s.GetDay()
}

// validSolarDate reports whether the date exists on the solar calendar.
func validSolarDate(year, month, day int) bool {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Year() == year && int(t.Month()) == month && t.Day() == day
}

// validLunarDate bounds month and day; lunar months never exceed 30 days.
// Short months and nonexistent leap months are caught by the conversion
// tables themselves.
func validLunarDate(month, day int) bool {
	return month >= 1 && month <= 12 && day >= 1 && day <= 30
}

// Complete fills in the missing calendar representation of a birth date.
// At least one representation must already be present. The conversion
// tables reject dates they cannot represent by panicking; that is caught
// here and returned as an error.
func Complete(b *model.BirthDate) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid birth date: %v", r)
		}
	}()

	switch {
	case b.HasSolar() && b.HasLunar():
		return nil
	case b.HasSolar():
		if !validSolarDate(b.SolarYear, b.SolarMonth, b.SolarDay) {
			return fmt.Errorf("solar date %04d-%02d-%02d does not exist", b.SolarYear, b.SolarMonth, b.SolarDay)
		}
		l := SolarToLunar(b.SolarYear, b.SolarMonth, b.SolarDay)
		b.LunarYear, b.LunarMonth, b.LunarDay = l.Year, l.Month, l.Day
		b.LunarLeapMonth = l.LeapMonth
		return nil
	case b.HasLunar():
		if !validLunarDate(b.LunarMonth, b.LunarDay) {
			return fmt.Errorf("lunar date %04d-%02d-%02d does not exist", b.LunarYear, b.LunarMonth, b.LunarDay)
		}
		y, m, d := LunarToSolar(b.LunarYear, b.LunarMonth, b.LunarDay, b.LunarLeapMonth)
		b.SolarYear, b.SolarMonth, b.SolarDay = y, m, d
		return nil
	default:
		return fmt.Errorf("birth date needs a solar or lunar representation")
	}
}
