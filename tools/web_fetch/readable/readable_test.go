package readable

import "testing"

func TestTruncateRunes(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"abcdef", 3, "abc"},
		{"Ελλάδα", 2, "Ελ"},
		{"short", 10, "short"},
		{"keep", 0, "keep"},
	}
	for _, tc := range cases {
		if got := Truncate(tc.in, tc.n); got != tc.want {
			t.Fatalf("Truncate(%q,%d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}
