package resources

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

type ShaderErrorKind string

const (
	MalformedSource  ShaderErrorKind = "malformed_source"
	CompilationError ShaderErrorKind = "compilation_error"
)

// ShaderError describes why a shader source was rejected. Line is 1-based;
// zero means the error has no location.
type ShaderError struct {
	Kind    ShaderErrorKind
	Line    int
	Message string
}

func (e *ShaderError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: 0:%d: %s", e.Kind, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

var entryPoint = regexp.MustCompile(`\bvoid\s+main\s*\(`)

// ValidateGLSL runs the structural checks a driver would reject first: the
// source must be NUL-free UTF-8, open with a #version directive, keep its
// brackets balanced and define main.
func ValidateGLSL(source string) error {
	if strings.IndexByte(source, 0) >= 0 {
		return &ShaderError{Kind: MalformedSource, Line: lineOf(source, strings.IndexByte(source, 0)), Message: "source contains a NUL byte"}
	}
	if !utf8.ValidString(source) {
		return &ShaderError{Kind: MalformedSource, Message: "source is not valid UTF-8"}
	}

	code := stripComments(source)
	if strings.TrimSpace(code) == "" {
		return &ShaderError{Kind: CompilationError, Message: "empty source"}
	}
	if err := checkVersion(code); err != nil {
		return err
	}
	if err := checkBrackets(code); err != nil {
		return err
	}
	if !entryPoint.MatchString(code) {
		return &ShaderError{Kind: CompilationError, Message: "missing entry point 'main'"}
	}
	return nil
}

func checkVersion(code string) error {
	for index, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "#version") {
			return &ShaderError{Kind: CompilationError, Line: index + 1, Message: "#version must be the first directive"}
		}
		fields := strings.Fields(trimmed)
		if len(fields) < 2 {
			return &ShaderError{Kind: CompilationError, Line: index + 1, Message: "#version requires a number"}
		}
		return nil
	}
	return nil
}

func checkBrackets(code string) error {
	type open struct {
		char rune
		line int
	}
	pairs := map[rune]rune{'}': '{', ')': '(', ']': '['}
	var stack []open
	line := 1
	for _, char := range code {
		switch char {
		case '\n':
			line++
		case '{', '(', '[':
			stack = append(stack, open{char: char, line: line})
		case '}', ')', ']':
			if len(stack) == 0 || stack[len(stack)-1].char != pairs[char] {
				return &ShaderError{Kind: CompilationError, Line: line, Message: fmt.Sprintf("unexpected '%c'", char)}
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		last := stack[len(stack)-1]
		return &ShaderError{Kind: CompilationError, Line: last.line, Message: fmt.Sprintf("unclosed '%c'", last.char)}
	}
	return nil
}

// stripComments blanks out comments while keeping newlines so line numbers
// still match the source.
func stripComments(source string) string {
	var b strings.Builder
	b.Grow(len(source))
	inLine, inBlock := false, false
	for i := 0; i < len(source); i++ {
		c := source[i]
		switch {
		case inLine:
			if c == '\n' {
				inLine = false
				b.WriteByte(c)
			}
		case inBlock:
			if c == '*' && i+1 < len(source) && source[i+1] == '/' {
				inBlock = false
				i++
			} else if c == '\n' {
				b.WriteByte(c)
			}
		case c == '/' && i+1 < len(source) && source[i+1] == '/':
			inLine = true
			i++
		case c == '/' && i+1 < len(source) && source[i+1] == '*':
			inBlock = true
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func lineOf(source string, offset int) int {
	return strings.Count(source[:offset], "\n") + 1
}
