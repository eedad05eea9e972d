// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package datetime

import (
	"fmt"
	"log/slog"
	"strings"
)

// Fragment is one value-class fragment of a date and time value.
type Fragment struct {
	Text string
	// Line is the source line of the element holding the fragment.
	Line int
}

// FragmentError is the error reported for a fragment that matches
// none of the grammars.
type FragmentError struct {
	Fragment
	Err error
}

func (e *FragmentError) Error() string {
	return fmt.Sprintf("%s %q", e.Err, e.Text)
}

func (e *FragmentError) Unwrap() error {
	return e.Err
}

// Composer assembles value-class fragments into a single [DateTime].
//
// Each fragment is classified by trying the timezone, the time and the
// date grammars, in this order. The first fragment of each kind is
// retained and later ones are ignored. A missing time defaults to
// midnight; a missing date is an error.
type Composer struct {
	// Strict sends malformed fragments to Report. Otherwise they are
	// silently dropped.
	Strict bool

	// Report receives the malformed fragments in strict mode. When it
	// returns an error, the composition stops with this error.
	Report func(*FragmentError) error

	// Logger receives diagnostics about duplicate fragments in strict mode.
	Logger *slog.Logger
}

// Compose returns the date and time composed from the given fragments.
func (c Composer) Compose(fragments []Fragment) (DateTime, error) {
	var (
		date  *Date
		clock *Clock
		zone  *Zone
	)

	for _, f := range fragments {
		txt := strings.TrimSpace(f.Text)

		if z, ok := ParseZone(txt); ok {
			if zone != nil {
				c.duplicate(f, "timezone")
				continue
			}
			zone = z
			continue
		}

		if t, ok := ParseTime(txt); ok {
			if clock != nil {
				c.duplicate(f, "time")
				continue
			}
			clock = &t
			if t.Zone != nil {
				if zone != nil {
					c.duplicate(f, "timezone")
				} else {
					zone = t.Zone
				}
			}
			continue
		}

		if d, ok := ParseDate(txt); ok {
			if date != nil {
				c.duplicate(f, "date")
				continue
			}
			date = &d
			continue
		}

		if c.Strict && c.Report != nil {
			if err := c.Report(&FragmentError{Fragment: f, Err: ErrMalformedFragment}); err != nil {
				return DateTime{}, err
			}
		}
	}

	if date == nil {
		return DateTime{}, ErrMissingDate
	}
	if clock == nil {
		clock = &Clock{}
	}

	return New(*date, *clock, zone), nil
}

func (c Composer) duplicate(f Fragment, kind string) {
	if !c.Strict || c.Logger == nil {
		return
	}
	c.Logger.Debug("duplicate datetime fragment ignored",
		slog.String("kind", kind),
		slog.String("text", f.Text),
		slog.Int("line", f.Line),
	)
}
