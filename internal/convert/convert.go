// Package convert turns command arguments into typed values. Parsers are
// tried in order; the first that accepts the input wins.
package convert

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"editbot/internal/duration"
	"editbot/internal/transport"
)

// Result is the outcome of one parser. OK with a nil Err is a match; a
// non-nil Err means the parser recognized the input but rejected it.
type Result[T any] struct {
	Value T
	OK    bool
	Err   error
}

type Parser[T any] func(s string) Result[T]

func ok[T any](v T) Result[T]         { return Result[T]{Value: v, OK: true} }
func fail[T any](err error) Result[T] { return Result[T]{Err: err} }
func skip[T any]() Result[T]          { return Result[T]{} }

// ErrNoMatch is returned by FirstOf when no parser accepted the input.
var ErrNoMatch = errors.New("convert: no parser matched")

// FirstOf runs parsers in order and stops at the first match. The last
// recognizing parser's error is reported when nothing matches.
func FirstOf[T any](parsers ...Parser[T]) Parser[T] {
	return func(s string) Result[T] {
		var lastErr error
		for _, p := range parsers {
			r := p(s)
			if r.OK {
				return r
			}
			if r.Err != nil {
				lastErr = r.Err
			}
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("%w: %q", ErrNoMatch, s)
		}
		return fail[T](lastErr)
	}
}

// Parse runs p and flattens its result.
func Parse[T any](p Parser[T], s string) (T, error) {
	r := p(s)
	if r.OK {
		return r.Value, nil
	}
	if r.Err == nil {
		r.Err = fmt.Errorf("%w: %q", ErrNoMatch, s)
	}
	var zero T
	return zero, r.Err
}

// Map adapts a parser to another result type.
func Map[T, U any](p Parser[T], fn func(T) U) Parser[U] {
	return func(s string) Result[U] {
		r := p(s)
		if !r.OK {
			return Result[U]{Err: r.Err}
		}
		return ok(fn(r.Value))
	}
}

var (
	truthy = map[string]bool{"true": true, "t": true, "yes": true, "y": true, "on": true, "enable": true, "enabled": true, "1": true}
	falsy  = map[string]bool{"false": true, "f": true, "no": true, "n": true, "off": true, "disable": true, "disabled": true, "0": true}
)

// Bool accepts the usual yes/no spellings.
func Bool(s string) Result[bool] {
	low := strings.ToLower(strings.TrimSpace(s))
	switch {
	case truthy[low]:
		return ok(true)
	case falsy[low]:
		return ok(false)
	}
	return skip[bool]()
}

// Int accepts base-10 integers, with an optional sign and "_" separators.
func Int(s string) Result[int64] {
	n, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(s), "_", ""), 10, 64)
	if err != nil {
		var ne *strconv.NumError
		if errors.As(err, &ne) && errors.Is(ne.Err, strconv.ErrRange) {
			return fail[int64](fmt.Errorf("convert: %q is out of range", s))
		}
		return skip[int64]()
	}
	return ok(n)
}

// Duration accepts "90" or "1h30m" style spans.
func Duration(s string) Result[duration.Duration] {
	d, err := duration.Parse(s)
	if err != nil {
		return fail[duration.Duration](err)
	}
	return ok(d)
}

// Mention is a user reference: a username, a numeric id, or both.
type Mention struct {
	Username string
	ID       int64
}

func (m Mention) String() string {
	if m.Username != "" {
		return "@" + m.Username
	}
	return strconv.FormatInt(m.ID, 10)
}

var usernameRe = regexp.MustCompile(`^@([A-Za-z][A-Za-z0-9_]{3,31})$`)

// MentionArg accepts "@username" or a positive numeric user id.
func MentionArg(s string) Result[Mention] {
	s = strings.TrimSpace(s)
	if m := usernameRe.FindStringSubmatch(s); m != nil {
		return ok(Mention{Username: m[1]})
	}
	if strings.HasPrefix(s, "@") {
		return fail[Mention](fmt.Errorf("convert: %q is not a valid username", s))
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		return ok(Mention{ID: n})
	}
	return skip[Mention]()
}

// EmojiArg accepts a custom emoji id (digits) or a literal emoji. Anything
// with letters or spaces is rejected.
func EmojiArg(s string) Result[transport.Emoji] {
	s = strings.TrimSpace(s)
	if s == "" {
		return skip[transport.Emoji]()
	}
	if isDigits(s) {
		return ok(transport.Emoji{CustomID: s})
	}
	for _, r := range s {
		if r < 0x80 && r != '#' && r != '*' && (r < '0' || r > '9') {
			return skip[transport.Emoji]()
		}
	}
	return ok(transport.Emoji{Unicode: s})
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
