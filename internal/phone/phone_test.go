package phone

import "testing"

func TestCanonical(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"(11) 98765-4321", "5511987654321"},
		{"+55 11 98765-4321", "5511987654321"},
		{"5511987654321", "5511987654321"},
		{"551187654321", "551187654321"},
		{"0 11 98765-4321", "5511987654321"},
		{"11 8765-4321", "551187654321"},
		// Area code 55 without DDI must still gain the prefix.
		{"55 8765-4321", "555587654321"},
		{"", ""},
		{"abc", ""},
		{"000", ""},
		{"9 8765-4321", "55987654321"},
	}

	for _, tc := range cases {
		if got := Canonical(tc.raw); got != tc.want {
			t.Errorf("Canonical(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestCanonicalIdempotent(t *testing.T) {
	inputs := []string{"(11) 98765-4321", "+55 11 98765-4321", "21 8765-4321"}
	for _, raw := range inputs {
		once := Canonical(raw)
		if twice := Canonical(once); twice != once {
			t.Errorf("Canonical not idempotent for %q: %q then %q", raw, once, twice)
		}
	}
}
