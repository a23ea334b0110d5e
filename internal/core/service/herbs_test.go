package service

import "testing"

func TestSuggestPrefixMatch(t *testing.T) {
	h := NewHerbs()

	got := h.Suggest("Ash")
	if len(got) != 1 || got[0].Name != "Ashwagandha" {
		t.Fatalf("Suggest(Ash) = %+v, want Ashwagandha", got)
	}

	// Case-insensitive.
	if got := h.Suggest("tUl"); len(got) != 1 || got[0].Name != "Tulsi" {
		t.Fatalf("Suggest(tUl) = %+v, want Tulsi", got)
	}
}

func TestSuggestBelowMinimumLength(t *testing.T) {
	h := NewHerbs()
	for _, q := range []string{"", "a", "as", "  a  "} {
		if got := h.Suggest(q); len(got) != 0 {
			t.Fatalf("Suggest(%q) = %+v, want empty", q, got)
		}
	}
}

func TestSuggestTableOrder(t *testing.T) {
	h := NewHerbs()
	// "Tri" and "Tul" both start with T; a three-letter shared prefix
	// does not exist, so probe with a prefix matching nothing.
	if got := h.Suggest("xyz"); len(got) != 0 {
		t.Fatalf("Suggest(xyz) = %+v, want empty", got)
	}
	if got := h.Suggest("Tur"); len(got) != 1 || got[0].Name != "Turmeric" {
		t.Fatalf("Suggest(Tur) = %+v", got)
	}
}
