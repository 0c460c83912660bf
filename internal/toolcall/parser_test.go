package toolcall

import "testing"

func TestParserFeedSimpleCall(t *testing.T) {
	p := DefaultParser()
	fragments := []string{"hello <tool_", "call>\nname: search\nargs: weather\n</tool_", "call> world"}

	var got *Call
	for _, f := range fragments {
		if c, ok := p.Feed(f); ok {
			got = c
		}
	}
	if got == nil {
		t.Fatal("expected a parsed call")
	}
	if got.Name != "search" || got.Args != "weather" {
		t.Fatalf("got %+v", got)
	}
	if got.State != Pending {
		t.Fatalf("expected Pending state, got %v", got.State)
	}
}

func TestParserMalformedBodyResetsWithoutRecord(t *testing.T) {
	p := DefaultParser()
	if c, ok := p.Feed("<tool_call>\nargs: no name here\n</tool_call>"); ok || c != nil {
		t.Fatalf("expected no record for missing name key, got %+v", c)
	}
	if c, ok := p.Feed("<tool_call>\nname: ok\n</tool_call>"); !ok || c.Name != "ok" {
		t.Fatalf("parser did not recover after malformed body: %+v ok=%v", c, ok)
	}
}

func TestParserIgnoresTextOutsideDelimiters(t *testing.T) {
	p := DefaultParser()
	if c, ok := p.Feed("just some plain text, no tool call here"); ok || c != nil {
		t.Fatalf("expected no record, got %+v", c)
	}
}

func TestParseBodyCaseInsensitiveKeys(t *testing.T) {
	name, args, ok := parseBody("NAME: lookup\nARGS: foo")
	if !ok || name != "lookup" || args != "foo" {
		t.Fatalf("parseBody = %q %q %v", name, args, ok)
	}
}

func TestParseBodyRequiresName(t *testing.T) {
	if _, _, ok := parseBody("args: foo"); ok {
		t.Fatal("expected ok=false without a name key")
	}
}
