// Package semantic resolves an editorial classification for every market.
//
// Resolution order per market is cache, then LLM provider, then the
// deterministic heuristic. The heuristic never fails, so every market always
// leaves the classifier with a classification.
package semantic

import (
	"regexp"
	"strings"

	"prediction-feed/internal/domain"
)

// CategoryKeywords maps one category to the phrases that signal it.
type CategoryKeywords struct {
	Category domain.Category
	Keywords []string
}

// GeoKeywords maps one geo tag to the phrases that signal it.
type GeoKeywords struct {
	Geo      domain.GeoTag
	Keywords []string
}

// Lexicon is the versioned keyword table shared by the classifier and scorer.
// Category and geo order matters: ties go to the earlier entry.
type Lexicon struct {
	Version         string
	ExclusionTokens []string
	Categories      []CategoryKeywords
	Geos            []GeoKeywords

	patterns map[string]*regexp.Regexp
}

// NewLexicon compiles a lexicon.
func NewLexicon(version string, exclusions []string, categories []CategoryKeywords, geos []GeoKeywords) *Lexicon {
	l := &Lexicon{
		Version:         version,
		ExclusionTokens: exclusions,
		Categories:      categories,
		Geos:            geos,
		patterns:        make(map[string]*regexp.Regexp),
	}
	for _, token := range exclusions {
		l.compile(token)
	}
	for _, c := range categories {
		for _, kw := range c.Keywords {
			l.compile(kw)
		}
	}
	for _, g := range geos {
		for _, kw := range g.Keywords {
			l.compile(kw)
		}
	}
	return l
}

// DefaultLexicon returns the built-in keyword table.
func DefaultLexicon() *Lexicon {
	return NewLexicon("2026-01",
		[]string{
			"meme", "doge", "pepe", "gossip", "celebrity", "james bond", "oscar", "grammy",
			"box office", "movie", "tv show", "super bowl", "world cup", "championship",
			"tournament", "masters", "golf", "tennis", "formula 1", "f1", "basketball",
			"football", "baseball", "hockey", "nba", "nfl", "soccer", "mlb", "nhl", "ufc",
			"crypto memecoin",
		},
		[]CategoryKeywords{
			{domain.CategoryPolitics, []string{"election", "vote", "senate", "house", "president", "prime minister"}},
			{domain.CategoryEconomy, []string{"inflation", "gdp", "recession", "unemployment", "federal reserve", "interest rate"}},
			{domain.CategoryPolicy, []string{"bill", "law", "regulation", "policy", "court", "supreme court"}},
			{domain.CategoryGeopolitics, []string{"war", "conflict", "ceasefire", "sanction", "nato", "china", "russia", "taiwan"}},
			{domain.CategoryPublicHealth, []string{"pandemic", "vaccine", "cdc", "outbreak", "public health", "hospital", "epidemic"}},
			{domain.CategoryClimateEnergy, []string{"climate", "emissions", "oil", "gas", "renewable", "energy", "carbon"}},
			{domain.CategoryTechAI, []string{"ai", "artificial intelligence", "openai", "anthropic", "google", "chip", "gpu", "robotics"}},
			{domain.CategorySports, []string{"sports", "tournament", "league", "championship", "playoff", "final"}},
			{domain.CategoryEntertainment, []string{"movie", "music", "celebrity", "award", "oscar", "grammy", "tv"}},
		},
		[]GeoKeywords{
			{domain.GeoUS, []string{"united states", "usa", "america", "american", "congress", "white house", "federal reserve", "trump", "biden"}},
			{domain.GeoEU, []string{"european union", "eu", "europe", "ecb", "germany", "france", "italy", "spain", "brussels"}},
			{domain.GeoAsia, []string{"asia", "china", "japan", "india", "taiwan", "korea", "beijing"}},
			{domain.GeoAfrica, []string{"africa", "nigeria", "kenya", "ethiopia", "south africa"}},
			{domain.GeoMiddleEast, []string{"middle east", "israel", "iran", "gaza", "saudi", "syria", "yemen", "lebanon"}},
		},
	)
}

func (l *Lexicon) compile(keyword string) {
	kw := strings.ToLower(keyword)
	if _, ok := l.patterns[kw]; ok {
		return
	}
	l.patterns[kw] = keywordPattern(kw)
}

// keywordPattern matches a phrase case-insensitively on word boundaries,
// allowing any whitespace run between words.
func keywordPattern(keyword string) *regexp.Regexp {
	parts := strings.Fields(keyword)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)\b` + strings.Join(parts, `\s+`) + `\b`)
}

// Corpus is the lower-cased text the lexicon matches against.
func Corpus(m *domain.Market) string {
	return strings.ToLower(m.Question + " " + m.DescriptionText() + " " + strings.Join(m.Tags, " "))
}

// Has reports whether the keyword occurs in corpus on word boundaries.
// Safe for concurrent use; the pattern table is read-only after NewLexicon.
func (l *Lexicon) Has(corpus, keyword string) bool {
	re, ok := l.patterns[strings.ToLower(keyword)]
	if !ok {
		re = keywordPattern(strings.ToLower(keyword))
	}
	return re.MatchString(corpus)
}

// ExclusionToken returns the first strict exclusion token found in corpus.
func (l *Lexicon) ExclusionToken(corpus string) (string, bool) {
	for _, token := range l.ExclusionTokens {
		if l.Has(corpus, token) {
			return token, true
		}
	}
	return "", false
}

// DetectCategory returns the category with the most keyword matches and
// the matched keywords. No match yields CategoryOther.
func (l *Lexicon) DetectCategory(corpus string) (domain.Category, []string) {
	best := domain.CategoryOther
	var bestKeywords []string
	for _, c := range l.Categories {
		matches := l.matches(corpus, c.Keywords)
		if len(matches) > len(bestKeywords) {
			best = c.Category
			bestKeywords = matches
		}
	}
	return best, bestKeywords
}

// DetectGeo returns the geo tag with the most keyword matches, else World.
func (l *Lexicon) DetectGeo(corpus string) domain.GeoTag {
	best := domain.GeoWorld
	bestCount := 0
	for _, g := range l.Geos {
		if n := len(l.matches(corpus, g.Keywords)); n > bestCount {
			best = g.Geo
			bestCount = n
		}
	}
	return best
}

func (l *Lexicon) matches(corpus string, keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		if l.Has(corpus, kw) {
			out = append(out, kw)
		}
	}
	return out
}

// ReasonToken turns a keyword into a reason code suffix.
func ReasonToken(keyword string) string {
	return strings.Join(strings.Fields(strings.ToLower(keyword)), "_")
}
