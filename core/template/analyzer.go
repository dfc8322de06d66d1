package template

import (
	"errors"
	"fmt"
	"strings"

	"github.com/siherrmann/homegraph/model"
)

// ErrCompile is returned when an expression cannot be analyzed.
var ErrCompile = errors.New("template compile error")

// IsExpression reports whether s contains template markup.
func IsExpression(s string) bool {
	return strings.Contains(s, "{{") || strings.Contains(s, "{%")
}

// entityFunctions take an entity id as their first argument.
var entityFunctions = map[string]bool{
	"states":           true,
	"is_state":         true,
	"state_attr":       true,
	"is_state_attr":    true,
	"has_value":        true,
	"expand":           true,
	"closest":          true,
	"distance":         true,
	"state_translated": true,
}

type tokenKind int

const (
	tokenIdent tokenKind = iota
	tokenString
	tokenNumber
	tokenPunct
)

type token struct {
	kind  tokenKind
	value string
}

// Analyzer is the default Compiler. It statically analyzes the blocks of
// an expression and refuses expressions it cannot fully attribute, e.g.
// entity ids held in lists or variables.
type Analyzer struct{}

// NewAnalyzer creates a new Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Compile returns the entity ids an expression depends on in order of appearance.
func (a *Analyzer) Compile(expression string) ([]string, error) {
	blocks, err := splitBlocks(expression)
	if err != nil {
		return nil, err
	}

	var deps []string
	seen := map[string]bool{}
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			deps = append(deps, id)
		}
	}

	for _, block := range blocks {
		tokens, err := tokenize(block)
		if err != nil {
			return nil, err
		}
		if err := checkBalance(tokens); err != nil {
			return nil, err
		}

		consumed := map[int]bool{}
		for i, t := range tokens {
			switch {
			case t.kind == tokenIdent && strings.HasPrefix(t.value, "states.") && !strings.HasPrefix(t.value, "states.get"):
				parts := strings.Split(t.value, ".")
				if len(parts) >= 3 && model.IsEntityID(parts[1]+"."+parts[2]) {
					add(parts[1] + "." + parts[2])
				}
			case t.kind == tokenIdent && t.value == "states" && i+1 < len(tokens) && tokens[i+1].value == "[":
				if i+2 < len(tokens) && tokens[i+2].kind == tokenString {
					consumed[i+2] = true
					if model.IsEntityID(tokens[i+2].value) {
						add(tokens[i+2].value)
					}
				}
			case t.kind == tokenIdent && (entityFunctions[t.value] || t.value == "states.get"):
				if i+2 < len(tokens) && tokens[i+1].value == "(" && tokens[i+2].kind == tokenString {
					consumed[i+2] = true
					if model.IsEntityID(tokens[i+2].value) {
						add(tokens[i+2].value)
					}
				}
			}
		}

		for i, t := range tokens {
			if t.kind == tokenString && !consumed[i] && model.IsEntityID(t.value) {
				return nil, fmt.Errorf("%w: unresolved entity reference %q", ErrCompile, t.value)
			}
		}
	}

	return deps, nil
}

// splitBlocks returns the inner text of all {{ }} and {% %} blocks.
// Comments are dropped.
func splitBlocks(expression string) ([]string, error) {
	var blocks []string
	rest := expression
	for {
		start, closing := nextBlock(rest)
		if start < 0 {
			return blocks, nil
		}

		end := strings.Index(rest[start+2:], closing)
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated block starting at %q", ErrCompile, truncate(rest[start:], 20))
		}
		if closing != "#}" {
			blocks = append(blocks, strings.Trim(rest[start+2:start+2+end], "-+ \t\r\n"))
		}
		rest = rest[start+2+end+len(closing):]
	}
}

var delimiters = [][2]string{{"{{", "}}"}, {"{%", "%}"}, {"{#", "#}"}}

func nextBlock(s string) (int, string) {
	start, closing := -1, ""
	for _, d := range delimiters {
		i := strings.Index(s, d[0])
		if i >= 0 && (start < 0 || i < start) {
			start, closing = i, d[1]
		}
	}
	return start, closing
}

func tokenize(block string) ([]token, error) {
	var tokens []token
	for i := 0; i < len(block); {
		c := block[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '\'' || c == '"':
			j := i + 1
			var b strings.Builder
			for ; j < len(block) && block[j] != c; j++ {
				if block[j] == '\\' && j+1 < len(block) {
					j++
				}
				b.WriteByte(block[j])
			}
			if j >= len(block) {
				return nil, fmt.Errorf("%w: unterminated string %q", ErrCompile, truncate(block[i:], 20))
			}
			tokens = append(tokens, token{kind: tokenString, value: b.String()})
			i = j + 1
		case isIdentStart(c):
			j := i
			for j < len(block) && (isIdentPart(block[j]) || block[j] == '.' && j+1 < len(block) && isIdentPart(block[j+1])) {
				j++
			}
			tokens = append(tokens, token{kind: tokenIdent, value: block[i:j]})
			i = j
		case c >= '0' && c <= '9':
			j := i
			for j < len(block) && (block[j] >= '0' && block[j] <= '9' || block[j] == '.') {
				j++
			}
			tokens = append(tokens, token{kind: tokenNumber, value: block[i:j]})
			i = j
		default:
			tokens = append(tokens, token{kind: tokenPunct, value: string(c)})
			i++
		}
	}
	return tokens, nil
}

func checkBalance(tokens []token) error {
	pairs := map[string]string{")": "(", "]": "[", "}": "{"}
	var stack []string
	for _, t := range tokens {
		if t.kind != tokenPunct {
			continue
		}
		switch t.value {
		case "(", "[", "{":
			stack = append(stack, t.value)
		case ")", "]", "}":
			if len(stack) == 0 || stack[len(stack)-1] != pairs[t.value] {
				return fmt.Errorf("%w: unbalanced %q", ErrCompile, t.value)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		return fmt.Errorf("%w: unclosed %q", ErrCompile, stack[len(stack)-1])
	}
	return nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
