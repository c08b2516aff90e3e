// Package logparser extracts benchmark events from the textual logs written by
// the nodes and clients of a benchmark run.
//
// A log is a sequence of newline terminated lines. Lines that do not follow the
// entry grammar below (stack traces, blank lines) are ignored, except that any
// line containing the fault marker "panicked at" counts as an error.
//
//	entry     := "[" TIMESTAMP " " LEVEL " " TARGET "]" " " message
//	TIMESTAMP := RFC 3339 time, fractional seconds optional (2024-03-01T10:00:00.123Z)
//	LEVEL     := "TRACE" | "DEBUG" | "INFO" | "WARN" | "ERROR"
//	TARGET    := any text without "]"
//	message   := header | event | other
//
// Messages are split into tokens: runs of digits are INT tokens, the characters
// ':', '(' and ')' are punctuation tokens, and any other run of non-space
// characters is a WORD token. Headers and events are token patterns:
//
//	header := "Node role" ":" WORD
//	        | "Run" ":" WORD
//	        | "Committee size" ":" INT "nodes"
//	        | "Transactions rate" ":" INT "tx/s"
//	        | "Transactions size" ":" INT "B"
//	        | "Benchmark duration" ":" INT "s"
//	        | "Timeout delay set to" INT "ms"
//	        | "Sync retry delay set to" INT "ms"
//	        | "Queue capacity set to" INT "payloads"
//	        | "Max payload size set to" INT "B"
//	event  := ("Created" | "Executed" | "Committed") id
//	id     := "tx" INT
//	        | BATCH [ "(" INT "tx" ")" ]       BATCH is "B" followed by digits
//
// The count of a batch is mandatory on "Created" and optional otherwise. Every
// entry at level ERROR is counted as an error.
package logparser

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// TokenType is the lexical class of a message token.
type TokenType uint8

const (
	TokenWord TokenType = iota
	TokenInt
	TokenPunct
)

func (t TokenType) String() string {
	switch t {
	case TokenInt:
		return "INT"
	case TokenPunct:
		return "PUNCT"
	default:
		return "WORD"
	}
}

// Token is a single lexical element of a log message.
type Token struct {
	Type TokenType
	Text string
}

func isPunct(r rune) bool {
	return r == ':' || r == '(' || r == ')'
}

// Lex splits a message into tokens.
func Lex(message string) []Token {
	var tokens []Token
	runes := []rune(message)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case isPunct(r):
			tokens = append(tokens, Token{Type: TokenPunct, Text: string(r)})
			i++
		default:
			j := i
			digits := true
			for j < len(runes) && !unicode.IsSpace(runes[j]) && !isPunct(runes[j]) {
				if runes[j] < '0' || runes[j] > '9' {
					digits = false
				}
				j++
			}
			typ := TokenWord
			if digits {
				typ = TokenInt
			}
			tokens = append(tokens, Token{Type: typ, Text: string(runes[i:j])})
			i = j
		}
	}
	return tokens
}

// Level is the severity of a log entry.
type Level string

const (
	LevelTrace Level = "TRACE"
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

func parseLevel(s string) (Level, bool) {
	switch l := Level(s); l {
	case LevelTrace, LevelDebug, LevelInfo, LevelWarn, LevelError:
		return l, true
	default:
		return "", false
	}
}

// Entry is one line of the log that follows the entry grammar.
type Entry struct {
	At      time.Time
	Level   Level
	Target  string
	Message string
}

// ParseEntry parses a single line. ok is false when the line does not follow
// the entry grammar.
func ParseEntry(line string) (entry Entry, ok bool) {
	if !strings.HasPrefix(line, "[") {
		return Entry{}, false
	}
	end := strings.IndexByte(line, ']')
	if end < 0 {
		return Entry{}, false
	}
	fields := strings.Fields(line[1:end])
	if len(fields) < 2 {
		return Entry{}, false
	}
	at, err := time.Parse(time.RFC3339Nano, fields[0])
	if err != nil {
		return Entry{}, false
	}
	level, ok := parseLevel(fields[1])
	if !ok {
		return Entry{}, false
	}
	return Entry{
		At:      at,
		Level:   level,
		Target:  strings.Join(fields[2:], " "),
		Message: strings.TrimSpace(line[end+1:]),
	}, true
}

// placeholder kinds used in patterns
const (
	argInt   = "{int}"
	argWord  = "{word}"
	argBatch = "{batch}"
)

// Pattern is a compiled token pattern. Pattern text is lexed like a message;
// the words {int}, {word} and {batch} match an INT token, any WORD or INT
// token, and a batch identifier respectively. Every other token matches itself.
type Pattern struct {
	text   string
	tokens []Token
	prefix int // number of literal tokens before the first placeholder
}

// MustCompile compiles a pattern and panics if it has no literal prefix.
func MustCompile(text string) Pattern {
	tokens := Lex(text)
	prefix := 0
	for prefix < len(tokens) && !isPlaceholder(tokens[prefix]) {
		prefix++
	}
	if prefix == 0 {
		panic(fmt.Sprintf("pattern %q must start with a literal", text))
	}
	return Pattern{text: text, tokens: tokens, prefix: prefix}
}

func isPlaceholder(t Token) bool {
	return t.Type == TokenWord && (t.Text == argInt || t.Text == argWord || t.Text == argBatch)
}

func (p Pattern) String() string {
	return p.text
}

// HasPrefix reports whether the tokens start with the pattern's literal prefix.
func (p Pattern) HasPrefix(tokens []Token) bool {
	if len(tokens) < p.prefix {
		return false
	}
	for i := 0; i < p.prefix; i++ {
		if tokens[i].Text != p.tokens[i].Text {
			return false
		}
	}
	return true
}

// Match matches all tokens against the pattern and returns the text bound to
// each placeholder. A batch placeholder binds the digits after the "B".
func (p Pattern) Match(tokens []Token) ([]string, bool) {
	if len(tokens) != len(p.tokens) {
		return nil, false
	}
	return p.MatchPrefix(tokens)
}

// MatchPrefix is like Match but ignores tokens after the pattern.
func (p Pattern) MatchPrefix(tokens []Token) ([]string, bool) {
	if len(tokens) < len(p.tokens) {
		return nil, false
	}
	var args []string
	for i, want := range p.tokens {
		got := tokens[i]
		switch {
		case want.Text == argInt && want.Type == TokenWord:
			if got.Type != TokenInt {
				return nil, false
			}
			args = append(args, got.Text)
		case want.Text == argWord && want.Type == TokenWord:
			if got.Type == TokenPunct {
				return nil, false
			}
			args = append(args, got.Text)
		case want.Text == argBatch && want.Type == TokenWord:
			if !isBatchID(got) {
				return nil, false
			}
			args = append(args, got.Text[1:])
		default:
			if got.Type != want.Type || got.Text != want.Text {
				return nil, false
			}
		}
	}
	return args, true
}

func isBatchID(t Token) bool {
	if t.Type != TokenWord || len(t.Text) < 2 || t.Text[0] != 'B' {
		return false
	}
	for _, r := range t.Text[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
