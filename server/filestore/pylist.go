package filestore

import (
	"fmt"
	"strings"
)

// The comments column holds a list-of-strings literal such as
// ['"gg" - ann', "it's fine - bob"]. Both quote styles are accepted on read
// so JSON arrays parse too.

func formatList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	parts := make([]string, len(items))
	for i, s := range items {
		parts[i] = quoteItem(s)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func quoteItem(s string) string {
	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}
	var b strings.Builder
	b.WriteByte(q)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case q:
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(q)
	return b.String()
}

func parseList(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "[]", "nan", "none", "null":
		return nil, nil
	}
	if s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("comments %q is not a list", s)
	}
	body := s[1 : len(s)-1]
	var out []string
	i := 0
	for {
		for i < len(body) && (body[i] == ' ' || body[i] == ',') {
			i++
		}
		if i >= len(body) {
			return out, nil
		}
		q := body[i]
		if q != '\'' && q != '"' {
			return nil, fmt.Errorf("comments %q: expected quote at %d", s, i)
		}
		i++
		var b strings.Builder
		closed := false
		for i < len(body) {
			c := body[i]
			i++
			if c == '\\' && i < len(body) {
				e := body[i]
				i++
				switch e {
				case 'n':
					b.WriteByte('\n')
				case 't':
					b.WriteByte('\t')
				default:
					b.WriteByte(e)
				}
				continue
			}
			if c == q {
				closed = true
				break
			}
			b.WriteByte(c)
		}
		if !closed {
			return nil, fmt.Errorf("comments %q: unterminated string", s)
		}
		out = append(out, b.String())
	}
}
