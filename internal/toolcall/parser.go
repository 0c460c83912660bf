// Package toolcall implements the tool-call parser spec.md §4.7 describes:
// a tiny state machine over streamed decoded fragments.
package toolcall

import (
	"strconv"
	"strings"
)

// State is the parser's current position relative to a delimited block.
type State int

const (
	StateOutside State = iota
	StateInside
)

// CallState tracks a parsed call's lifecycle through the agent
// orchestrator's tool-injection loop (spec.md §4.7, §4.8).
type CallState int

const (
	Pending CallState = iota
	Executing
	Completed
	Failed
)

func (s CallState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Executing:
		return "executing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Call is one parsed tool-call record.
type Call struct {
	ID     string
	Name   string
	Args   string
	State  CallState
	Result string
}

// Parser is a streaming state machine over decoded fragments with
// configurable opening/closing delimiters (spec.md §4.7's reference
// implementation uses angle-bracketed tags containing "tool_call" and
// "/tool_call").
type Parser struct {
	open, close string
	state       State
	buf         strings.Builder
	startOffset int
	nextID      int
}

// New constructs a Parser with the given opening and closing delimiters.
func New(open, close string) *Parser {
	return &Parser{open: open, close: close}
}

// DefaultParser mirrors the reference delimiters spec.md §4.7 names.
func DefaultParser() *Parser {
	return New("<tool_call>", "</tool_call>")
}

// Feed appends fragment to the internal buffer and advances the state
// machine. It returns a freshly minted Pending Call and true the moment a
// well-formed block closes; otherwise (nil, false).
func (p *Parser) Feed(fragment string) (*Call, bool) {
	p.buf.WriteString(fragment)
	buf := p.buf.String()

	switch p.state {
	case StateOutside:
		idx := strings.Index(buf, p.open)
		if idx < 0 {
			return nil, false
		}
		p.startOffset = idx
		p.state = StateInside
		return p.Feed("")
	case StateInside:
		closeIdx := strings.Index(buf[p.startOffset:], p.close)
		if closeIdx < 0 {
			return nil, false
		}
		bodyStart := p.startOffset + len(p.open)
		bodyEnd := p.startOffset + closeIdx
		if bodyEnd < bodyStart {
			p.reset()
			return nil, false
		}
		body := buf[bodyStart:bodyEnd]

		name, args, ok := parseBody(body)
		p.reset()
		if !ok {
			return nil, false
		}
		p.nextID++
		return &Call{ID: callID(p.nextID), Name: name, Args: args, State: Pending}, true
	}
	return nil, false
}

func (p *Parser) reset() {
	p.buf.Reset()
	p.state = StateOutside
	p.startOffset = 0
}

func callID(n int) string {
	return "tc_" + strconv.Itoa(n)
}
