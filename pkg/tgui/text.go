package tgui

import "strings"

// TruncRunes cuts s to at most n runes, ending with "…" when it had to cut.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n]) + "…"
}

// SplitText breaks s into chunks of at most limit runes (MaxTextLen when
// limit <= 0). A chunk ends at the last newline in its final two thirds when
// there is one; in HTML mode it never ends inside a tag.
func SplitText(s string, limit int, parseMode string) []string {
	if limit <= 0 {
		limit = MaxTextLen
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}
	html := strings.EqualFold(parseMode, "HTML")

	var chunks []string
	for len(rs) > 0 {
		end := len(rs)
		if end > limit {
			end = cutAtNewline(rs, limit)
			if html {
				end = cutBeforeTag(rs, end)
			}
		}
		chunks = append(chunks, strings.TrimRight(string(rs[:end]), "\n"))
		rs = rs[end:]
		for len(rs) > 0 && rs[0] == '\n' {
			rs = rs[1:]
		}
	}
	return chunks
}

// cutAtNewline returns the chunk end for rs: just past the last newline
// within rs[limit/3:limit], else limit.
func cutAtNewline(rs []rune, limit int) int {
	for i := limit - 1; i >= limit/3 && i > 0; i-- {
		if rs[i] == '\n' {
			return i + 1
		}
	}
	return limit
}

// cutBeforeTag moves end back to the start of a tag left open at end.
func cutBeforeTag(rs []rune, end int) int {
	for i := end - 1; i > 1; i-- {
		switch rs[i] {
		case '>':
			return end
		case '<':
			return i
		}
	}
	return end
}
