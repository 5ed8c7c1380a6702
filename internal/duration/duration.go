// Package duration parses and formats the compact "1y1w1d1h1m1s" duration
// syntax used by chat commands.
package duration

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Unit sizes in seconds. Years are 365 days, weeks 7 days.
const (
	Year   int64 = 365 * Day
	Week   int64 = 7 * Day
	Day    int64 = 24 * Hour
	Hour   int64 = 60 * Minute
	Minute int64 = 60
	Second int64 = 1
)

var unitSeconds = map[byte]int64{
	'y': Year, 'w': Week, 'd': Day, 'h': Hour, 'm': Minute, 's': Second,
}

var groupRe = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)([ywdhms])`)

// InvalidFormatError is returned when the input contains no duration group.
type InvalidFormatError struct {
	Input string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("'%s' is an invalid format for time! Format must be '1y1w1d1h1m1s'.", e.Input)
}

// ErrCompactTooLong is returned by Format in Compact style for spans of a
// week or more.
var ErrCompactTooLong = errors.New("duration: compact format cannot be used with times of 7 days or more")

// Duration keeps the user's input next to the parsed value.
type Duration struct {
	Original string
	Seconds  int64
}

func (d Duration) Std() time.Duration { return time.Duration(d.Seconds) * time.Second }

func (d Duration) String() string { return d.Original }

func (d Duration) IsZero() bool { return d.Seconds == 0 }

// Parse reads a plain number of seconds or one or more "<n><unit>" groups,
// e.g. "90", "1h30m", "1.5d". Groups are summed and rounded to the second.
func Parse(s string) (Duration, error) {
	in := strings.TrimSpace(s)
	if n, err := strconv.ParseInt(in, 10, 64); err == nil {
		if n < 0 {
			return Duration{}, &InvalidFormatError{Input: s}
		}
		return Duration{Original: s, Seconds: n}, nil
	}
	groups := groupRe.FindAllStringSubmatch(strings.ToLower(in), -1)
	if len(groups) == 0 {
		return Duration{}, &InvalidFormatError{Input: s}
	}
	var total float64
	for _, g := range groups {
		v, err := strconv.ParseFloat(g[1], 64)
		if err != nil {
			return Duration{}, &InvalidFormatError{Input: s}
		}
		total += v * float64(unitSeconds[g[2][0]])
	}
	if total > math.MaxInt64/2 {
		return Duration{}, &InvalidFormatError{Input: s}
	}
	return Duration{Original: s, Seconds: int64(math.Round(total))}, nil
}

// Parts is a span broken into calendar-free units.
type Parts struct {
	Years, Weeks, Days, Hours, Minutes, Seconds int64
	Total                                       int64
}

// Split breaks seconds into units, largest first.
func Split(seconds int64) Parts {
	p := Parts{Total: seconds}
	rest := seconds
	p.Years, rest = rest/Year, rest%Year
	p.Weeks, rest = rest/Week, rest%Week
	p.Days, rest = rest/Day, rest%Day
	p.Hours, rest = rest/Hour, rest%Hour
	p.Minutes, p.Seconds = rest/Minute, rest%Minute
	return p
}

// SplitStd is Split for a time.Duration, truncated to whole seconds.
func SplitStd(d time.Duration) Parts { return Split(int64(d / time.Second)) }

type Style int

const (
	Long    Style = iota // "1 hour and 2 minutes"
	Letter               // "1h and 2m"
	Compact              // "01:02:03"
)

type unit struct {
	name string
	val  int64
}

func (p Parts) units() []unit {
	return []unit{
		{"year", p.Years}, {"week", p.Weeks}, {"day", p.Days},
		{"hour", p.Hours}, {"minute", p.Minutes}, {"second", p.Seconds},
	}
}

// Format renders seconds in the given style. Negative input is formatted as
// its absolute value.
func Format(seconds int64, style Style) (string, error) {
	if seconds < 0 {
		seconds = -seconds
	}
	p := Split(seconds)
	if style == Compact {
		return p.compact()
	}
	var parts []string
	for _, u := range p.units() {
		if u.val == 0 {
			continue
		}
		if style == Letter {
			parts = append(parts, strconv.FormatInt(u.val, 10)+u.name[:1])
			continue
		}
		parts = append(parts, strconv.FormatInt(u.val, 10)+" "+u.name+plural(u.val))
	}
	if len(parts) == 0 {
		if style == Letter {
			return "0s", nil
		}
		return "0 seconds", nil
	}
	return joinAnd(parts), nil
}

// MustFormat is Format for the Long and Letter styles, which cannot fail.
func MustFormat(seconds int64, style Style) string {
	s, err := Format(seconds, style)
	if err != nil {
		panic(err)
	}
	return s
}

// compact renders "DD:HH:MM:SS" with leading zero units dropped; a span of
// seconds only renders as "0:SS".
func (p Parts) compact() (string, error) {
	if p.Years > 0 || p.Weeks > 0 {
		return "", ErrCompactTooLong
	}
	vals := []int64{p.Days, p.Hours, p.Minutes, p.Seconds}
	for len(vals) > 1 && vals[0] == 0 {
		vals = vals[1:]
	}
	if len(vals) == 1 {
		return fmt.Sprintf("0:%02d", vals[0]), nil
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = fmt.Sprintf("%02d", v)
	}
	return strings.Join(out, ":"), nil
}

func plural(n int64) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func joinAnd(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
	}
}
