package markers

import "testing"

func TestFold(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"[Deleted]", "[deleted]"},
		{"  [REMOVED]\n", "[removed]"},
		{"\uff3bremoved\uff3d", "[removed]"}, // fullwidth brackets
		{"[dele\u200bted]", "[deleted]"}, // zero width space is Cf
		{"hello   world", "hello world"},
		{"bad\xffutf8", "badutf8"},
	}
	for _, c := range cases {
		if got := Fold(c.in); got != c.want {
			t.Fatalf("Fold(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIs(t *testing.T) {
	yes := []string{"[deleted]", "[removed]", " [Removed] ", "\uff3bdeleted\uff3d"}
	no := []string{"", "deleted", "[deleted] by mods", "hello", "[removed]!"}
	for _, s := range yes {
		if !Is(s) {
			t.Fatalf("Is(%q) = false, want true", s)
		}
	}
	for _, s := range no {
		if Is(s) {
			t.Fatalf("Is(%q) = true, want false", s)
		}
	}
}
