package search

import (
	"sort"
	"strings"

	"github.com/counselkit/insight-engine/internal/core/domain"
)

// Mapper defaults.
const (
	DefaultMapperTopK   = 5
	maxHints            = 3
	maxImprovementAreas = 5
)

// Mapping pairs one success candidate with the analysis of how it differs
// from the failure conversation.
type Mapping struct {
	Match                 domain.SearchMatch
	SituationalSimilarity float64
	KeyDifferences        []string
	ImprovementHints      []string
}

// MapSummary aggregates the mapping result.
type MapSummary struct {
	TotalFound          int
	AvgSimilarity       float64
	TopImprovementAreas []string
}

// MapResult is the full failure-to-success mapping output.
type MapResult struct {
	Mappings []Mapping
	Summary  MapSummary
}

// Attributes are the situational facets extracted from conversation text.
type Attributes struct {
	ConcernCategory string
	PlanType        string
	Phase           string
}

// Attribute keyword tables. Matching is first-hit in declaration order, so
// more specific categories come first.
var (
	concernCategories = []attrRule{
		{"pricing", []string{"price", "cost", "payment", "expensive", "budget", "installment"}},
		{"effectiveness", []string{"effect", "result", "work", "improvement", "outcome"}},
		{"safety", []string{"safe", "pain", "risk", "side effect", "worry", "anxious"}},
		{"scheduling", []string{"schedule", "appointment", "available", "weekend", "evening"}},
	}

	planTypes = []attrRule{
		{"trial", []string{"trial", "first visit", "introductory", "sample"}},
		{"course", []string{"course", "package", "plan", "subscription", "sessions"}},
		{"single", []string{"one-time", "single session", "per visit"}},
	}

	phases = []attrRule{
		{"closing", []string{"sign up", "contract", "decide", "book", "next appointment"}},
		{"proposal", []string{"recommend", "suggest", "offer", "propose", "option"}},
		{"needs", []string{"concern", "looking for", "interested", "tell me about", "how long"}},
		{"greeting", []string{"welcome", "thank you for coming", "nice to meet"}},
	}
)

type attrRule struct {
	name     string
	keywords []string
}

// hintTable maps domain keywords present in a success example but absent from
// the failure to a concrete suggestion.
var hintTable = map[string]string{
	"effect":       "include a more concrete explanation of the expected results",
	"price":        "add a clear breakdown of the pricing structure",
	"reassure":     "use wording that eases the customer's concerns",
	"experience":   "bring in testimonials or real case examples",
	"consultation": "emphasize that the customer can ask anything freely",
}

const fallbackHint = "study the tone and structure of the success example"

var positiveWords = []string{"reassure", "effective", "satisfied", "trust", "safe", "comfortable"}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "that": {}, "this": {}, "with": {},
	"you": {}, "your": {}, "have": {}, "will": {}, "are": {}, "was": {},
	"can": {}, "about": {}, "what": {}, "when": {}, "how": {}, "our": {},
}

// MapFailureToSuccesses analyzes a failed conversation against success
// candidates already retrieved from the store. Candidates below the threshold
// are dropped before the topK cut; the threshold is a relevance floor, the cap
// only limits result size. Pure and deterministic; an empty result is valid.
func MapFailureToSuccesses(failureText string, candidates []domain.SearchMatch, threshold float64, topK int) MapResult {
	if topK <= 0 {
		topK = DefaultMapperTopK
	}

	passing := make([]domain.SearchMatch, 0, len(candidates))

	for _, c := range candidates {
		if c.Score >= threshold {
			passing = append(passing, c)
		}
	}

	sort.SliceStable(passing, func(i, j int) bool { return passing[i].Score > passing[j].Score })

	if len(passing) > topK {
		passing = passing[:topK]
	}

	failureAttrs := ExtractAttributes(failureText)
	failureKeywords := extractKeywords(failureText)

	mappings := make([]Mapping, 0, len(passing))
	areaCounts := make(map[string]int)

	var scoreSum float64

	for _, c := range passing {
		successAttrs := ExtractAttributes(c.Text)
		successKeywords := extractKeywords(c.Text)

		for kw := range successKeywords {
			if _, present := failureKeywords[kw]; !present {
				areaCounts[kw]++
			}
		}

		mappings = append(mappings, Mapping{
			Match:                 c,
			SituationalSimilarity: situationalSimilarity(failureAttrs, successAttrs),
			KeyDifferences:        keyDifferences(failureText, c.Text, failureAttrs, successAttrs),
			ImprovementHints:      improvementHints(failureKeywords, successKeywords),
		})

		scoreSum += c.Score
	}

	summary := MapSummary{TotalFound: len(mappings)}
	if len(mappings) > 0 {
		summary.AvgSimilarity = scoreSum / float64(len(mappings))
		summary.TopImprovementAreas = topAreas(areaCounts, maxImprovementAreas)
	}

	return MapResult{Mappings: mappings, Summary: summary}
}

// ExtractAttributes derives the situational facets of a conversation from
// keyword tables. Unmatched facets stay empty.
func ExtractAttributes(text string) Attributes {
	lower := strings.ToLower(text)

	return Attributes{
		ConcernCategory: matchRule(lower, concernCategories),
		PlanType:        matchRule(lower, planTypes),
		Phase:           matchRule(lower, phases),
	}
}

func matchRule(lower string, rules []attrRule) string {
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.name
			}
		}
	}

	return ""
}

// situationalSimilarity is the fraction of comparable facets that agree.
// Facets missing on both sides are excluded from the denominator.
func situationalSimilarity(a, b Attributes) float64 {
	pairs := [][2]string{
		{a.ConcernCategory, b.ConcernCategory},
		{a.PlanType, b.PlanType},
		{a.Phase, b.Phase},
	}

	var comparable, matched int

	for _, p := range pairs {
		if p[0] == "" && p[1] == "" {
			continue
		}

		comparable++

		if p[0] == p[1] {
			matched++
		}
	}

	if comparable == 0 {
		return 0
	}

	return float64(matched) / float64(comparable)
}

func keyDifferences(failureText, successText string, failureAttrs, successAttrs Attributes) []string {
	var diffs []string

	fLen, sLen := len(failureText), len(successText)

	switch {
	case float64(sLen) > float64(fLen)*1.5:
		diffs = append(diffs, "the success example explains things in more detail")
	case float64(sLen) < float64(fLen)*0.7:
		diffs = append(diffs, "the success example is shorter and sticks to the point")
	}

	lowerFailure := strings.ToLower(failureText)
	lowerSuccess := strings.ToLower(successText)

	var fPositive, sPositive int

	for _, w := range positiveWords {
		if strings.Contains(lowerSuccess, w) {
			sPositive++
		}

		if strings.Contains(lowerFailure, w) {
			fPositive++
		}
	}

	if sPositive > fPositive {
		diffs = append(diffs, "the success example uses more positive wording")
	}

	if successAttrs.ConcernCategory != "" && successAttrs.ConcernCategory != failureAttrs.ConcernCategory {
		diffs = append(diffs, "the success example addresses the customer's "+successAttrs.ConcernCategory+" concern directly")
	}

	if successAttrs.Phase != "" && successAttrs.Phase != failureAttrs.Phase {
		diffs = append(diffs, "the success example reaches the "+successAttrs.Phase+" phase")
	}

	return diffs
}

func improvementHints(failureKeywords, successKeywords map[string]struct{}) []string {
	var hints []string

	// Stable hint order regardless of map iteration.
	keys := make([]string, 0, len(hintTable))
	for k := range hintTable {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, kw := range keys {
		if _, inSuccess := successKeywords[kw]; !inSuccess {
			continue
		}

		if _, inFailure := failureKeywords[kw]; inFailure {
			continue
		}

		hints = append(hints, hintTable[kw])
		if len(hints) == maxHints {
			return hints
		}
	}

	if len(hints) == 0 {
		hints = append(hints, fallbackHint)
	}

	return hints
}

func extractKeywords(text string) map[string]struct{} {
	keywords := make(map[string]struct{})

	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if len(w) < 3 {
			continue
		}

		if _, stop := stopWords[w]; stop {
			continue
		}

		keywords[w] = struct{}{}
	}

	return keywords
}

func topAreas(counts map[string]int, limit int) []string {
	type area struct {
		word  string
		count int
	}

	areas := make([]area, 0, len(counts))
	for w, c := range counts {
		areas = append(areas, area{w, c})
	}

	sort.Slice(areas, func(i, j int) bool {
		if areas[i].count != areas[j].count {
			return areas[i].count > areas[j].count
		}

		return areas[i].word < areas[j].word
	})

	if len(areas) > limit {
		areas = areas[:limit]
	}

	out := make([]string, len(areas))
	for i, a := range areas {
		out[i] = a.word
	}

	return out
}
