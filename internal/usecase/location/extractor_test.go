package location

import (
	"reflect"
	"testing"

	"github.com/kailas-cloud/vntravel/internal/domain"
)

func newDefault() *Extractor {
	return NewExtractor(DefaultGazetteer, "")
}

func TestExtract_QueryOnly(t *testing.T) {
	set := newDefault().Extract("Best activities in Hanoi", nil)

	if got := set.Names(); !reflect.DeepEqual(got, []string{"Hanoi"}) {
		t.Fatalf("expected {Hanoi}, got %v", got)
	}
}

func TestExtract_FallbackToDefaultRegion(t *testing.T) {
	set := newDefault().Extract("qwerty zxcv plugh", nil)

	if got := set.Names(); !reflect.DeepEqual(got, []string{"Vietnam"}) {
		t.Fatalf("expected {Vietnam}, got %v", got)
	}
}

func TestExtract_CustomDefaultRegion(t *testing.T) {
	set := NewExtractor(nil, "Southeast Asia").Extract("anything", nil)
	if !set.Contains("Southeast Asia") || set.Len() != 1 {
		t.Fatalf("unexpected set %v", set.Names())
	}
}

func TestScan_LongestMatchWins(t *testing.T) {
	e := NewExtractor([]Entry{{Name: "Ho"}, {Name: "Ho Chi Minh City"}}, "")

	got := e.Scan("Street food in Ho Chi Minh City tonight")
	if !reflect.DeepEqual(got, []string{"Ho Chi Minh City"}) {
		t.Fatalf("expected only the longer place, got %v", got)
	}

	got = e.Scan("Ho Chi Minh City or Ho")
	if !reflect.DeepEqual(got, []string{"Ho Chi Minh City", "Ho"}) {
		t.Fatalf("expected both when the short name appears on its own, got %v", got)
	}
}

func TestScan_WordBoundaries(t *testing.T) {
	e := newDefault()
	if got := e.Scan("Where is the best huesos?"); len(got) != 0 {
		t.Errorf("substring inside a word must not match, got %v", got)
	}
	if got := e.Scan("Hue, then Hoi-An!"); !reflect.DeepEqual(got, []string{"Hue", "Hoi An"}) {
		t.Errorf("punctuation should separate words, got %v", got)
	}
}

func TestScan_AliasesAndDiacritics(t *testing.T) {
	e := newDefault()
	tests := []struct {
		in   string
		want []string
	}{
		{"3 days in SAIGON", []string{"Ho Chi Minh City"}},
		{"Đà Lạt flower gardens", []string{"Dalat"}},
		{"cruise on Hạ Long Bay from Hà Nội", []string{"Halong Bay", "Hanoi"}},
		{"Sa Pa or Sapa trekking", []string{"Sapa"}},
	}
	for _, tc := range tests {
		if got := e.Scan(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Scan(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestExtract_MetadataLocations(t *testing.T) {
	matches := []domain.VectorMatch{
		{ID: "a", Metadata: domain.Metadata{"city": "Saigon"}},
		{ID: "b", Metadata: domain.Metadata{"region": "Central Highlands"}},
		{ID: "c", Metadata: domain.Metadata{"name": "no location"}},
	}
	set := newDefault().Extract("romantic getaway", matches)

	want := []string{"Central Highlands", "Ho Chi Minh City"}
	if got := set.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if set.Contains("Vietnam") {
		t.Error("default region must not be added when something matched")
	}
}

func TestExtract_Deterministic(t *testing.T) {
	e := newDefault()
	matches := []domain.VectorMatch{
		{ID: "x", Metadata: domain.Metadata{"city": "Hue"}},
		{ID: "y", Metadata: domain.Metadata{"city": "Hoi An"}},
	}
	first := e.Extract("Da Nang and Hanoi", matches).Names()
	for range 20 {
		if got := e.Extract("Da Nang and Hanoi", matches).Names(); !reflect.DeepEqual(got, first) {
			t.Fatalf("non-deterministic output: %v vs %v", got, first)
		}
	}
	if len(first) != 4 {
		t.Errorf("expected 4 locations, got %v", first)
	}
}

func TestCanonicalize(t *testing.T) {
	e := newDefault()
	if got := e.Canonicalize("ha long"); got != "Halong Bay" {
		t.Errorf("expected alias to canonicalize, got %q", got)
	}
	if got := e.Canonicalize("  Quy Nhon "); got != "Quy Nhon" {
		t.Errorf("unknown names should pass through trimmed, got %q", got)
	}
}
