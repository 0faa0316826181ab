// Package search ranks episodes against a fuzzy query using fzf's matcher.
package search

import (
	"sort"
	"strings"
	"sync"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"

	"github.com/csams/sterncast/internal/models"
)

// Score threshold constants (based on raw fzf scores)
const (
	ScoreThresholdStrict     = 70
	ScoreThresholdNormal     = 50
	ScoreThresholdPermissive = 30
	ScoreThresholdNone       = 0
)

var initOnce sync.Once

// Field names which part of an episode matched.
type Field string

const (
	FieldNone        Field = ""
	FieldTitle       Field = "title"
	FieldNumber      Field = "number"
	FieldDescription Field = "description"
)

// MatchResult contains match score and rune positions for highlighting.
type MatchResult struct {
	Score     int
	Positions []int
}

// Hit is one episode that matched a query.
type Hit struct {
	Index   int // position in the input slice
	Episode models.Episode
	Field   Field
	Result  MatchResult
}

// Matcher scores text against a query. The zero value is not usable; call New.
type Matcher struct {
	query         string
	caseSensitive bool
	minScore      int
	slab          *util.Slab
}

func New(query string, minScore int) *Matcher {
	initOnce.Do(func() { algo.Init("default") })
	return &Matcher{
		query:    query,
		minScore: minScore,
		slab:     util.MakeSlab(16384, 1024),
	}
}

// SetCaseSensitive toggles case-sensitive matching.
func (m *Matcher) SetCaseSensitive(v bool) {
	m.caseSensitive = v
}

func (m *Matcher) Query() string {
	return m.query
}

// SetQuery replaces the query.
func (m *Matcher) SetQuery(query string) {
	m.query = query
}

func (m *Matcher) MinScore() int {
	return m.minScore
}

// Match scores text. Score is -1 when text does not match at all.
func (m *Matcher) Match(text string) MatchResult {
	if m.query == "" {
		return MatchResult{}
	}

	searchText := text
	pattern := m.query
	if !m.caseSensitive {
		searchText = strings.ToLower(text)
		pattern = strings.ToLower(m.query)
	}

	chars := util.ToChars([]byte(searchText))
	result, positions := algo.FuzzyMatchV2(m.caseSensitive, false, true, &chars, []rune(pattern), true, m.slab)
	if result.Start < 0 {
		return MatchResult{Score: -1}
	}

	var matchPositions []int
	if positions != nil {
		// Indices into chars, which are rune positions
		matchPositions = make([]int, len(*positions))
		copy(matchPositions, *positions)
		sort.Ints(matchPositions)
	}
	return MatchResult{Score: result.Score, Positions: matchPositions}
}

func (m *Matcher) accepts(r MatchResult) bool {
	return r.Score >= 0 && (m.minScore == 0 || r.Score >= m.minScore)
}

// MatchEpisode tries the title, then the episode number, then the description.
func (m *Matcher) MatchEpisode(ep models.Episode) (bool, Field, MatchResult) {
	if m.query == "" {
		return true, FieldNone, MatchResult{}
	}

	if r := m.Match(ep.Title); m.accepts(r) {
		return true, FieldTitle, r
	}
	if ep.EpisodeNumber != "" && strings.TrimSpace(m.query) == ep.EpisodeNumber {
		return true, FieldNumber, MatchResult{Score: ScoreThresholdStrict}
	}
	if r := m.Match(ep.Description); m.accepts(r) {
		return true, FieldDescription, r
	}
	return false, FieldNone, MatchResult{Score: -1}
}

// Filter returns the matching episodes, best score first. Ties keep input order.
// An empty query returns every episode in input order.
func (m *Matcher) Filter(episodes []models.Episode) []Hit {
	hits := make([]Hit, 0, len(episodes))
	for i, ep := range episodes {
		ok, field, r := m.MatchEpisode(ep)
		if !ok {
			continue
		}
		hits = append(hits, Hit{Index: i, Episode: ep, Field: field, Result: r})
	}
	if m.query != "" {
		sort.SliceStable(hits, func(a, b int) bool {
			return hits[a].Result.Score > hits[b].Result.Score
		})
	}
	return hits
}
