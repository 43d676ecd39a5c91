package pipeline

import "testing"

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"prose around payload", `noise{"a":1}trailer`, `{"a":1}`},
		{"whitespace trimmed", "  \n {\"a\":1} \n ", `{"a":1}`},
		{"no braces passthrough", "no braces here", "no braces here"},
		{"only open brace", "text { more", "text { more"},
		{"close before open", "} nope {", "} nope {"},
		{"multiple objects keep outer span", `a{"x":1} mid {"y":2}b`, `{"x":1} mid {"y":2}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractJSON(tc.in)
			if got != tc.want {
				t.Fatalf("ExtractJSON(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestExtractJSONIdempotent(t *testing.T) {
	inputs := []string{
		`noise{"a":1}trailer`,
		"no braces here",
		`{"nested":{"b":2}} trailing`,
	}
	for _, in := range inputs {
		once := ExtractJSON(in)
		twice := ExtractJSON(once)
		if once != twice {
			t.Fatalf("ExtractJSON not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}
