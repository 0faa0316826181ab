package search

import (
	"testing"

	"github.com/csams/sterncast/internal/models"
)

func episodes() []models.Episode {
	return []models.Episode{
		{ID: "ep-1", Title: "Folge 1: Sterne", Description: "Wie Sterne entstehen", EpisodeNumber: "1"},
		{ID: "ep-2", Title: "Folge 2: Pulsare", Description: "Rotierende Neutronensterne", EpisodeNumber: "2"},
		{ID: "ep-3", Title: "Folge 3: Schwarze Löcher", Description: "Ereignishorizont und mehr", EpisodeNumber: "3"},
	}
}

func TestEmptyQueryMatchesEverything(t *testing.T) {
	hits := New("", ScoreThresholdNormal).Filter(episodes())
	if len(hits) != 3 {
		t.Fatalf("Expected 3 hits, got %d", len(hits))
	}
	for i, h := range hits {
		if h.Index != i {
			t.Errorf("Expected input order, got index %d at %d", h.Index, i)
		}
	}
}

func TestTitleMatch(t *testing.T) {
	m := New("pulsar", ScoreThresholdNone)
	hits := m.Filter(episodes())

	if len(hits) == 0 {
		t.Fatal("Expected at least one hit")
	}
	if hits[0].Episode.ID != "ep-2" {
		t.Errorf("Expected ep-2 first, got %s", hits[0].Episode.ID)
	}
	if hits[0].Field != FieldTitle {
		t.Errorf("Expected title match, got %q", hits[0].Field)
	}
	if len(hits[0].Result.Positions) != len("pulsar") {
		t.Errorf("Expected %d positions, got %v", len("pulsar"), hits[0].Result.Positions)
	}
}

func TestCaseInsensitiveByDefault(t *testing.T) {
	m := New("SCHWARZE", ScoreThresholdNone)
	ok, field, _ := m.MatchEpisode(episodes()[2])
	if !ok || field != FieldTitle {
		t.Errorf("Expected case-insensitive title match, got ok=%v field=%q", ok, field)
	}

	m.SetCaseSensitive(true)
	if ok, _, _ := m.MatchEpisode(episodes()[2]); ok {
		t.Error("Expected no match with case-sensitive search")
	}
}

func TestDescriptionMatch(t *testing.T) {
	m := New("ereignishorizont", ScoreThresholdNone)
	ok, field, r := m.MatchEpisode(episodes()[2])
	if !ok {
		t.Fatal("Expected description match")
	}
	if field != FieldDescription {
		t.Errorf("Expected description field, got %q", field)
	}
	if r.Score <= 0 {
		t.Errorf("Expected positive score, got %d", r.Score)
	}
}

func TestEpisodeNumberMatch(t *testing.T) {
	m := New("3", ScoreThresholdStrict)
	ok, field, _ := m.MatchEpisode(models.Episode{Title: "ohne Zahl", EpisodeNumber: "3"})
	if !ok || field != FieldNumber {
		t.Errorf("Expected number match, got ok=%v field=%q", ok, field)
	}
}

func TestNoMatch(t *testing.T) {
	m := New("xyzzy", ScoreThresholdNone)
	if hits := m.Filter(episodes()); len(hits) != 0 {
		t.Errorf("Expected no hits, got %d", len(hits))
	}
	if r := m.Match("Sterne"); r.Score != -1 {
		t.Errorf("Expected score -1, got %d", r.Score)
	}
}

func TestMinScoreFilters(t *testing.T) {
	loose := New("sne", ScoreThresholdNone).Filter(episodes())
	strict := New("sne", 10000).Filter(episodes())
	if len(loose) == 0 {
		t.Fatal("Expected loose threshold to match")
	}
	if len(strict) != 0 {
		t.Errorf("Expected impossible threshold to reject everything, got %d", len(strict))
	}
}

func TestInputEditing(t *testing.T) {
	var in Input
	for _, r := range "Größe" {
		in.InsertChar(r)
	}
	if in.String() != "Größe" || in.Cursor() != 5 {
		t.Fatalf("Expected 'Größe' with cursor 5, got %q at %d", in.String(), in.Cursor())
	}

	in.MoveCursorLeft()
	in.DeleteChar()
	if in.String() != "Gröe" {
		t.Errorf("Expected 'Gröe', got %q", in.String())
	}

	in.MoveCursorStart()
	in.DeleteCharForward()
	if in.String() != "röe" {
		t.Errorf("Expected 'röe', got %q", in.String())
	}

	in.SetQuery("schwarze löcher")
	in.DeleteWord()
	if in.String() != "schwarze " {
		t.Errorf("Expected 'schwarze ', got %q", in.String())
	}

	in.MoveCursorStart()
	in.MoveCursorRight()
	in.DeleteToEnd()
	if in.String() != "s" {
		t.Errorf("Expected 's', got %q", in.String())
	}

	in.Clear()
	if in.String() != "" || in.Cursor() != 0 {
		t.Errorf("Expected cleared input, got %q at %d", in.String(), in.Cursor())
	}
}
