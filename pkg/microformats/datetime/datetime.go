// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package datetime implements the date and time part of the value-class-pattern.
//
// It provides the lexical grammars for timezones, times (24-hour and 12-hour
// with a meridiem marker) and dates (calendar and ordinal forms), and a
// [Composer] that assembles one timestamp out of independent fragments.
package datetime

import (
	"errors"
	"time"
)

var (
	// ErrMalformedFragment is returned when a fragment matches none of the
	// timezone, time or date grammars.
	ErrMalformedFragment = errors.New("malformed datetime fragment")

	// ErrMissingDate is returned when a composition has no date fragment.
	ErrMissingDate = errors.New("missing date")
)

const (
	layoutDate  = "2006-01-02"
	layoutNaive = "2006-01-02T15:04:05"
	layoutZoned = "2006-01-02T15:04:05Z07:00"
)

// Date is a calendar date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Zone is a fixed timezone offset.
type Zone struct {
	// Offset in seconds east of UTC.
	Offset int
	// Name is the zone as written in the source ("Z", "-0130"...).
	Name string
}

// Location returns the [time.Location] of the zone.
func (z Zone) Location() *time.Location {
	if z.Name == "Z" || z.Name == "z" {
		return time.UTC
	}
	return time.FixedZone(z.Name, z.Offset)
}

// Clock is a time of day with an optional zone.
type Clock struct {
	Hour   int
	Minute int
	Second int
	Zone   *Zone
}

// DateTime is a composed value. When Zoned is false, Time is in UTC but
// must be read as a naive (local) date and time. Valid is false for
// the zero value only, so "0001-01-01" remains a real date.
type DateTime struct {
	Time     time.Time
	Valid    bool
	Zoned    bool
	DateOnly bool
}

// New returns a [DateTime] from a date, a clock and an optional zone.
func New(d Date, c Clock, z *Zone) DateTime {
	loc := time.UTC
	if z != nil {
		loc = z.Location()
	}
	return DateTime{
		Time:  time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, c.Second, 0, loc),
		Valid: true,
		Zoned: z != nil,
	}
}

// Date returns a date only copy of the value, without time or zone.
func (dt DateTime) Date() DateTime {
	y, m, d := dt.Time.Date()
	return DateTime{
		Time:     time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Valid:    dt.Valid,
		DateOnly: true,
	}
}

// IsZero reports whether the value is unset.
func (dt DateTime) IsZero() bool {
	return !dt.Valid
}

// String returns the ISO 8601 form of the value.
func (dt DateTime) String() string {
	switch {
	case !dt.Valid:
		return ""
	case dt.DateOnly:
		return dt.Time.Format(layoutDate)
	case !dt.Zoned:
		return dt.Time.Format(layoutNaive)
	}
	return dt.Time.Format(layoutZoned)
}

// MarshalText implements [encoding.TextMarshaler].
func (dt DateTime) MarshalText() ([]byte, error) {
	return []byte(dt.String()), nil
}

// MarshalJSON implements [json.Marshaler].
func (dt DateTime) MarshalJSON() ([]byte, error) {
	if !dt.Valid {
		return []byte("null"), nil
	}
	return []byte(`"` + dt.String() + `"`), nil
}
