package router

import (
	"strings"

	"github.com/google/uuid"
)

// newReqID returns a short random request id for log correlation.
func newReqID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:12]
}

// tokenizeCommandLine splits command text into tokens while supporting quotes.
// Examples:
//
//	/cmd a "b c" --k=v
func tokenizeCommandLine(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var (
		out   []string
		buf   strings.Builder
		inQ   bool
		qChar rune
		esc   bool
	)
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, buf.String())
			buf.Reset()
		}
	}
	for _, ch := range s {
		switch {
		case esc:
			buf.WriteRune(ch)
			esc = false
		case ch == '\\':
			esc = true
		case inQ && ch == qChar:
			inQ = false
		case inQ:
			buf.WriteRune(ch)
		case ch == '"' || ch == '\'':
			inQ, qChar = true, ch
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			flush()
		default:
			buf.WriteRune(ch)
		}
	}
	flush()
	return out
}

// parseFlags splits raw args into positionals and flags.
//
// Supported:
//
//	--k=v, --k v, --flag (bool)
//	-k=v, -k v, -abc (bool flags a,b,c)
func parseFlags(args []string) (pos []string, flags map[string]string, bools map[string]bool) {
	flags = map[string]string{}
	bools = map[string]bool{}
	takesValue := func(i int) bool {
		return i+1 < len(args) && !strings.HasPrefix(args[i+1], "-")
	}
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case strings.HasPrefix(a, "--") && len(a) > 2:
			key := a[2:]
			if k, v, ok := strings.Cut(key, "="); ok {
				flags[k] = v
			} else if takesValue(i) {
				flags[key] = args[i+1]
				i++
			} else {
				bools[key] = true
			}
		case strings.HasPrefix(a, "-") && len(a) > 1 && !isNumber(a):
			key := a[1:]
			if k, v, ok := strings.Cut(key, "="); ok {
				flags[k] = v
			} else if len(key) == 1 && takesValue(i) {
				flags[key] = args[i+1]
				i++
			} else if len(key) == 1 {
				bools[key] = true
			} else {
				for _, r := range key {
					bools[string(r)] = true
				}
			}
		default:
			pos = append(pos, a)
		}
	}
	return pos, flags, bools
}

// isNumber keeps negative numbers positional ("-5" is not a flag).
func isNumber(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return true
}

// commandWord extracts the command name from the first token ("/echo@bot" -> "echo").
func commandWord(tok string) string {
	w := strings.TrimPrefix(tok, "/")
	if i := strings.IndexByte(w, '@'); i >= 0 {
		w = w[:i]
	}
	return strings.ToLower(w)
}
