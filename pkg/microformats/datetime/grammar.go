// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package datetime

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	rxZone     = `(?:(?P<tzsign>[-+])(?P<tzhour>\d{1,2}):?(?P<tzmin>\d\d)|(?P<tzzulu>Z))`
	rxMeridiem = `(?:(?P<am>am|a\.m\.)|(?P<pm>pm|p\.m\.))`
)

var (
	rxZoneOnly = regexp.MustCompile(`(?i)^` + rxZone + `$`)
	rxTime     = regexp.MustCompile(
		`(?i)^(?P<hour>\d{1,2}):?(?P<min>\d\d)(?::?(?P<sec>\d\d))?` + rxMeridiem + `?` + rxZone + `?$`,
	)
	rxHourMeridiem = regexp.MustCompile(`(?i)^(?P<hour>\d{1,2})` + rxMeridiem + `$`)
	rxDate         = regexp.MustCompile(`^(?P<year>\d{4})-(?P<month>\d\d)-(?P<day>\d\d)$`)
	rxOrdinalDate  = regexp.MustCompile(`^(?P<year>\d{4})-(?P<yday>\d{3})$`)
)

type groups map[string]string

func match(rx *regexp.Regexp, s string) groups {
	m := rx.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	res := groups{}
	for i, name := range rx.SubexpNames() {
		if name != "" && m[i] != "" {
			res[name] = m[i]
		}
	}
	return res
}

func (g groups) int(name string) int {
	i, _ := strconv.Atoi(g[name])
	return i
}

// ParseZone parses a timezone fragment: "Z" or a signed offset
// ("-05:00", "+0530", "-5:00").
func ParseZone(s string) (*Zone, bool) {
	g := match(rxZoneOnly, s)
	if g == nil {
		return nil, false
	}
	return g.zone()
}

func (g groups) zone() (*Zone, bool) {
	if z, ok := g["tzzulu"]; ok {
		return &Zone{Name: strings.ToUpper(z)}, true
	}
	if _, ok := g["tzsign"]; !ok {
		return nil, true
	}

	hour, minute := g.int("tzhour"), g.int("tzmin")
	if hour > 23 || minute > 59 {
		return nil, false
	}

	offset := hour*3600 + minute*60
	if g["tzsign"] == "-" {
		offset = -offset
	}
	return &Zone{
		Offset: offset,
		Name:   g["tzsign"] + g["tzhour"] + g["tzmin"],
	}, true
}

// ParseTime parses a time fragment. It accepts "HH[:]MM[:SS]" with an
// optional meridiem marker and an optional trailing timezone, and the
// short form "10am" / "2p.m.".
//
// Hour 24 wraps to 0. With a meridiem, "12am" is 0 and pm hours
// below 12 are shifted by 12.
func ParseTime(s string) (Clock, bool) {
	// "2009-213" also reads as 20:09 at -02:13. Dates take precedence.
	if _, ok := ParseDate(s); ok {
		return Clock{}, false
	}

	g := match(rxTime, s)
	if g == nil {
		g = match(rxHourMeridiem, s)
	}
	if g == nil {
		return Clock{}, false
	}

	c := Clock{
		Hour:   g.int("hour"),
		Minute: g.int("min"),
		Second: g.int("sec"),
	}
	if c.Minute > 59 || c.Second > 59 {
		return Clock{}, false
	}

	_, am := g["am"]
	_, pm := g["pm"]
	switch {
	case am || pm:
		if c.Hour > 12 {
			return Clock{}, false
		}
		if am && c.Hour == 12 {
			c.Hour = 0
		} else if pm && c.Hour < 12 {
			c.Hour += 12
		}
	case c.Hour == 24:
		c.Hour = 0
	case c.Hour > 24:
		return Clock{}, false
	}

	z, ok := g.zone()
	if !ok {
		return Clock{}, false
	}
	c.Zone = z

	return c, true
}

// ParseDate parses a calendar date (YYYY-MM-DD) or an ordinal
// date (YYYY-DDD).
func ParseDate(s string) (Date, bool) {
	if g := match(rxDate, s); g != nil {
		d := Date{Year: g.int("year"), Month: time.Month(g.int("month")), Day: g.int("day")}
		t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
		if t.Year() != d.Year || t.Month() != d.Month || t.Day() != d.Day {
			return Date{}, false
		}
		return d, true
	}

	if g := match(rxOrdinalDate, s); g != nil {
		year, yday := g.int("year"), g.int("yday")
		first := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		if yday < 1 || yday > first.AddDate(1, 0, -1).YearDay() {
			return Date{}, false
		}
		t := first.AddDate(0, 0, yday-1)
		return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, true
	}

	return Date{}, false
}

// ParseDateTime parses a full "<date>T<time>" literal.
func ParseDateTime(s string) (DateTime, bool) {
	parts := strings.Split(strings.ToUpper(s), "T")
	if len(parts) != 2 {
		return DateTime{}, false
	}
	d, ok := ParseDate(parts[0])
	if !ok {
		return DateTime{}, false
	}
	c, ok := ParseTime(parts[1])
	if !ok {
		return DateTime{}, false
	}
	return New(d, c, c.Zone), true
}

// ParseLiteral parses a whole text as a full datetime literal, then
// as a bare date.
func ParseLiteral(s string) (DateTime, bool) {
	s = strings.TrimSpace(s)
	if dt, ok := ParseDateTime(s); ok {
		return dt, true
	}
	if d, ok := ParseDate(s); ok {
		return New(d, Clock{}, nil), true
	}
	return DateTime{}, false
}
