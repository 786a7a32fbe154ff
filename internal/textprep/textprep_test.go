package textprep

import (
	"reflect"
	"testing"
	"time"

	"github.com/IshaanNene/pressgoat/internal/types"
)

func TestFold(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Québec", "quebec"},
		{"Île-du-Prince", "ile-du-prince"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := Fold(tt.in); got != tt.want {
			t.Errorf("Fold(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Le ministre à Montréal: COVID-19 update, a pneumonoultramicroscopic test.")
	want := []string{"le", "ministre", "montreal", "covid", "update", "test"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
}

func TestStopwordsImmutable(t *testing.T) {
	base := NewStopwords([]string{"the"})
	extended := base.With("yukon")

	if base.Contains("yukon") {
		t.Error("With mutated the receiver")
	}
	if !extended.Contains("Yukon") || !extended.Contains("the") {
		t.Error("extended set is missing words")
	}
}

func TestStopwordsPhrases(t *testing.T) {
	sw := Default()
	text := "Funding announced. " + Boilerplate + " Schools reopen."

	got := sw.Terms(text)
	want := []string{"funding", "announced", "schools", "reopen"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Terms = %v, want %v", got, want)
	}
	if sw.Contains("javascript") {
		t.Error("phrase words leaked into the single-word set")
	}
}

func TestGeoStopwords(t *testing.T) {
	tbl := types.Table{
		{Region: "British Columbia"},
		{Region: "Prince Edward Island", Subregion: "Charlottetown"},
		{Region: "British Columbia"},
	}
	got := GeoStopwords(tbl)
	want := []string{"british", "charlottetown", "columbia", "edward", "island", "prince"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GeoStopwords = %v, want %v", got, want)
	}

	sw := Default().WithGeo(tbl)
	if !sw.Contains("columbia") || !sw.Contains("the") {
		t.Error("WithGeo lost words")
	}
}

func TestTopTerms(t *testing.T) {
	day := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	tbl := types.Table{
		types.NewArticle("Yukon", day, "u1", "t", "Vaccine clinics open in Yukon"),
		types.NewArticle("Yukon", day, "u2", "t", "Vaccine supply arrives"),
	}
	got := TopTerms(tbl, Default().WithGeo(tbl), 2)
	want := []TermCount{{"vaccine", 2}, {"arrives", 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopTerms = %v, want %v", got, want)
	}
}
