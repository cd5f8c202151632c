package flavor

import "testing"

func TestMapGenreExactMatch(t *testing.T) {
	v, ok := MapGenre("Jazz")
	if !ok {
		t.Fatal("expected match for Jazz")
	}
	if v[Acoustic] < 0.5 {
		t.Errorf("expected jazz to lean acoustic, got %v", v[Acoustic])
	}
}

func TestMapGenreSubstringFallback(t *testing.T) {
	v, ok := MapGenre("Deep House")
	if !ok {
		t.Fatal("expected substring match for Deep House")
	}
	if v[Danceable] < 0.8 {
		t.Errorf("expected house-derived danceability, got %v", v[Danceable])
	}
}

func TestMapGenreNoMatch(t *testing.T) {
	if _, ok := MapGenre("Gregorian Throat Singing"); ok {
		t.Fatal("expected no match for unrecognized genre")
	}
}

func TestMapGenreEmpty(t *testing.T) {
	if _, ok := MapGenre("   "); ok {
		t.Fatal("expected no match for blank genre")
	}
}
