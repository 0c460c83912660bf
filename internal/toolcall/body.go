package toolcall

import "strings"

// parseBody parses a tool-call block's body as a sequence of "key: value"
// lines (whitespace-trimmed, case-insensitive keys), per spec.md §4.7. It
// requires a "name" key and accepts an optional "args" key; any other
// shape is malformed and reported via ok=false.
//
// This is hand-rolled line scanning rather than a library-parsed format:
// the "name:"/"args:" block is a two-key mini-format the specification
// itself invents, not a serialization the ecosystem ships a parser for.
func parseBody(body string) (name, args string, ok bool) {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "name":
			name = value
		case "args":
			args = value
		}
	}
	if name == "" {
		return "", "", false
	}
	return name, args, true
}
