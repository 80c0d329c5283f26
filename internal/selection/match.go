package selection

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Pattern is a compiled find -path glob.
//
// Unlike filepath.Match, the wildcards cross directory separators:
//   - * matches any run of characters, / included
//   - ? matches one character
//   - [...] and [!...] match one character from (or outside) a set,
//     which may name POSIX classes such as [:digit:]
//   - \ makes the next character literal
type Pattern struct {
	source string
	re     *regexp.Regexp
}

// Compile parses a glob into a Pattern. A leading "./" is ignored.
func Compile(glob string) (Pattern, error) {
	glob = strings.TrimPrefix(glob, "./")

	expr, err := translate(glob)
	if err != nil {
		return Pattern{}, err
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("compiling pattern %q: %w", glob, err)
	}

	return Pattern{source: glob, re: re}, nil
}

// Match reports whether the slash-separated relative path matches.
func (p Pattern) Match(rel string) bool {
	return p.re.MatchString(rel)
}

func (p Pattern) String() string {
	return p.source
}

// translate rewrites a glob as an anchored regular expression.
func translate(glob string) (string, error) {
	var out strings.Builder

	out.WriteByte('^')

	for i := 0; i < len(glob); i++ {
		switch c := glob[i]; c {
		case '*':
			out.WriteString(".*")
		case '?':
			out.WriteByte('.')
		case '\\':
			if i+1 == len(glob) {
				return "", fmt.Errorf("pattern %q ends in a backslash", glob)
			}

			i++
			out.WriteString(regexp.QuoteMeta(glob[i : i+1]))
		case '[':
			class, end, err := translateClass(glob, i)
			if err != nil {
				return "", err
			}

			out.WriteString(class)

			i = end
		default:
			out.WriteString(regexp.QuoteMeta(glob[i : i+1]))
		}
	}

	out.WriteByte('$')

	return out.String(), nil
}

// translateClass rewrites the bracket expression opened at glob[start] and returns it
// with the index of its closing bracket. A ] first in the set is literal, a backslash
// makes the next character literal and POSIX names such as [:alpha:] are kept.
func translateClass(glob string, start int) (string, int, error) {
	var out strings.Builder

	out.WriteByte('[')

	i := start + 1

	if i < len(glob) && (glob[i] == '!' || glob[i] == '^') {
		out.WriteByte('^')

		i++
	}

	for first := true; i < len(glob); first = false {
		switch c := glob[i]; {
		case c == ']' && !first:
			out.WriteByte(']')

			return out.String(), i, nil
		case strings.HasPrefix(glob[i:], "[:"):
			end := strings.Index(glob[i+2:], ":]")
			if end < 0 {
				return "", 0, fmt.Errorf("pattern %q has an unclosed character class name", glob)
			}

			name := glob[i+2 : i+2+end]
			if !classNames[name] {
				return "", 0, fmt.Errorf("pattern %q uses unknown character class %q", glob, name)
			}

			out.WriteString("[:" + name + ":]")

			i += end + len("[::]")

			continue
		case c == '\\':
			if i+1 == len(glob) {
				return "", 0, fmt.Errorf("pattern %q ends in a backslash", glob)
			}

			i++
			out.WriteString(classLiteral(glob[i : i+1]))
		case c == '-':
			out.WriteByte('-')
		default:
			out.WriteString(classLiteral(glob[i : i+1]))
		}

		i++
	}

	return "", 0, fmt.Errorf("pattern %q has an unclosed character class", glob)
}

// classLiteral returns the single byte b escaped for use inside a regexp character class.
func classLiteral(b string) string {
	switch c := b[0]; {
	case c >= utf8.RuneSelf,
		'a' <= c && c <= 'z',
		'A' <= c && c <= 'Z',
		'0' <= c && c <= '9':
		return b
	default:
		return `\` + b
	}
}

//nolint:gochecknoglobals
var classNames = map[string]bool{
	"alnum": true, "alpha": true, "blank": true, "cntrl": true,
	"digit": true, "graph": true, "lower": true, "print": true,
	"punct": true, "space": true, "upper": true, "xdigit": true,
}
