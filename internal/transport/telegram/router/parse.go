package router

import (
	"strings"

	"github.com/google/uuid"
)

// newReqID is a short random id attached to every request log line.
func newReqID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:12]
}

// tokenizeCommandLine splits on whitespace, honoring single or double quotes
// and backslash escapes:
//
//	/remind set "9:00 AM" --message 'buy milk'
//
// Phones often autocorrect "--" into an em or en dash; a leading dash of
// either kind is read as "--".
func tokenizeCommandLine(s string) []string {
	var (
		out    []string
		buf    strings.Builder
		quote  rune
		escape bool
		quoted bool
	)
	flush := func() {
		if buf.Len() > 0 || quoted {
			out = append(out, normalizeDash(buf.String()))
			buf.Reset()
		}
		quoted = false
	}
	for _, r := range strings.TrimSpace(s) {
		switch {
		case escape:
			buf.WriteRune(r)
			escape = false
		case r == '\\':
			escape = true
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			buf.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			quoted = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			buf.WriteRune(r)
		}
	}
	flush()
	return out
}

func normalizeDash(tok string) string {
	for _, d := range []string{"—", "–"} {
		if strings.HasPrefix(tok, d) && len(tok) > len(d) {
			return "--" + tok[len(d):]
		}
	}
	return tok
}

func isFlag(tok string) bool {
	return len(tok) > 1 && tok[0] == '-' && tok != "--"
}

// parseFlags separates positionals from flags.
//
//	--k=v            value "v"
//	--k a b c        value "a b c" (runs until the next flag)
//	--k              bool
//	-k v, -k=v       value
//	-abc             bools a, b, c
//
// Positionals are everything before the first flag plus anything after a bare "--".
func parseFlags(args []string) (pos []string, flags map[string]string, bools map[string]bool) {
	flags = map[string]string{}
	bools = map[string]bool{}
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			pos = append(pos, args[i+1:]...)
			break
		}
		if !isFlag(a) {
			pos = append(pos, a)
			continue
		}
		long := strings.HasPrefix(a, "--")
		key := strings.TrimLeft(a, "-")
		if k, v, ok := strings.Cut(key, "="); ok {
			flags[strings.ToLower(k)] = v
			continue
		}
		key = strings.ToLower(key)
		switch {
		case long:
			j := i + 1
			for j < len(args) && !isFlag(args[j]) && args[j] != "--" {
				j++
			}
			if j == i+1 {
				bools[key] = true
				continue
			}
			flags[key] = strings.Join(args[i+1:j], " ")
			i = j - 1
		case len(key) == 1:
			if i+1 < len(args) && !isFlag(args[i+1]) {
				flags[key] = args[i+1]
				i++
				continue
			}
			bools[key] = true
		default:
			for _, r := range key {
				bools[string(r)] = true
			}
		}
	}
	return pos, flags, bools
}
