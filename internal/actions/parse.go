// internal/actions/parse.go

// Package actions parses the agent-facing action grammar and dispatches
// parsed actions to browser operations through a typed command registry.
package actions

import (
	"strconv"
	"strings"
	"unicode"
)

// Action is one parsed agent action: a name plus coerced arguments.
type Action struct {
	Name string
	Args []any
}

// Parse turns an action string of the form `name(arg, arg, ...)` into an
// Action. Surrounding whitespace and one layer of fenced code-block
// decoration (with or without a language tag) are stripped first, so parsing
// is idempotent with respect to both.
func Parse(input string) (Action, error) {
	s := stripFence(strings.TrimSpace(input))

	open := strings.IndexByte(s, '(')
	if open <= 0 || !strings.HasSuffix(s, ")") {
		return Action{}, &ParseError{Input: input, Reason: "expected name(arg, ...)"}
	}

	name := strings.TrimSpace(s[:open])
	if !validName(name) {
		return Action{}, &ParseError{Input: input, Reason: "invalid action name " + strconv.Quote(name)}
	}

	body := s[open+1 : len(s)-1]
	tokens, err := splitTopLevel(body)
	if err != nil {
		return Action{}, &ParseError{Input: input, Reason: err.Error()}
	}

	args := make([]any, 0, len(tokens))
	for _, tok := range tokens {
		args = append(args, coerce(tok))
	}
	return Action{Name: name, Args: args}, nil
}

// stripFence removes one layer of ``` fencing, tolerating a language tag on
// the opening fence.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := s[3 : len(s)-3]
	// Drop the language tag: everything up to the first newline, provided
	// the tag itself looks like a bare word.
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
		tag := strings.TrimSpace(inner[:nl])
		if tag == "" || validName(tag) {
			inner = inner[nl+1:]
		}
	}
	return strings.TrimSpace(inner)
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}

// splitTopLevel splits on commas that sit outside quoted strings and outside
// any matched (), [] or {} nesting.
func splitTopLevel(body string) ([]string, error) {
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}

	var tokens []string
	var depth int
	var quote byte
	start := 0

	for i := 0; i < len(body); i++ {
		c := body[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++ // skip the escaped character
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth < 0 {
				return nil, &parseReason{"unbalanced brackets in arguments"}
			}
		case ',':
			if depth == 0 {
				tokens = append(tokens, strings.TrimSpace(body[start:i]))
				start = i + 1
			}
		}
	}
	if quote != 0 {
		return nil, &parseReason{"unterminated string literal"}
	}
	if depth != 0 {
		return nil, &parseReason{"unbalanced brackets in arguments"}
	}
	tokens = append(tokens, strings.TrimSpace(body[start:]))
	return tokens, nil
}

type parseReason struct{ msg string }

func (e *parseReason) Error() string { return e.msg }

// coerce converts one argument token, in order of precedence: quoted string,
// integer, float, boolean literal, null literal, raw string fallback.
func coerce(tok string) any {
	if len(tok) >= 2 {
		if (tok[0] == '"' && tok[len(tok)-1] == '"') || (tok[0] == '\'' && tok[len(tok)-1] == '\'') {
			return unescape(tok[1 : len(tok)-1])
		}
	}
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return f
	}
	switch tok {
	case "true", "True":
		return true
	case "false", "False":
		return false
	case "null", "None":
		return nil
	}
	return tok
}

// unescape resolves backslash escapes inside a quoted argument.
func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\', '\'', '"':
			b.WriteByte(s[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
