// Package quality scores generated counseling scripts against the current
// evidence base. Every function here is pure and deterministic: same script,
// same baseline, same report.
package quality

import (
	"math"
	"sort"
	"strings"

	"github.com/counselkit/insight-engine/internal/core/domain"
)

// Scoring constants.
const (
	// Raw marker coverage at or above this fraction maps to a full score.
	coverageTarget = 0.8

	// A marker counts as covered when at least half its keywords appear.
	markerKeywordThreshold = 0.5

	// An element counts as matched at this keyword match rate.
	elementMatchThreshold = 0.3

	maxUniqueElements = 10
)

// Script is the generated script text grouped by counseling phase.
type Script struct {
	Phases map[string]string
}

// Text joins all phases in a stable order.
func (s Script) Text() string {
	names := make([]string, 0, len(s.Phases))
	for name := range s.Phases {
		names = append(names, name)
	}

	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, s.Phases[name])
	}

	return strings.Join(parts, " ")
}

// Marker is one success-pattern marker derived from a cluster's theme.
type Marker struct {
	Name     string
	Keywords []string
}

// Element is one entry of the curated success-element taxonomy.
type Element struct {
	Name     string
	Keywords []string
}

// DataQuality grades the evidence base the script was generated from.
// Zero values fall back to a neutral 0.8 per facet.
type DataQuality struct {
	Completeness float64
	Consistency  float64
	Accuracy     float64
}

// Baseline is the evidence snapshot a script is scored against.
type Baseline struct {
	Markers      []Marker
	Elements     []Element
	PriorScripts []string
	SampleSize   int
	DataQuality  DataQuality
}

// Weights combine the four metric scores into the overall score.
// Zero weights mean equal weighting.
type Weights struct {
	Coverage        float64
	Novelty         float64
	SuccessMatching float64
	Reliability     float64
}

func (w Weights) withDefaults() Weights {
	if w == (Weights{}) {
		return Weights{Coverage: 0.25, Novelty: 0.25, SuccessMatching: 0.25, Reliability: 0.25}
	}

	return w
}

// Analyze produces the quality report for one script against the baseline.
func Analyze(scriptID string, script Script, baseline Baseline, weights Weights) domain.QualityReport {
	text := strings.ToLower(script.Text())

	report := domain.QualityReport{ScriptID: scriptID}

	report.Coverage, report.CoveredMarkers, report.MissingMarkers = coverage(text, baseline.Markers)
	report.Novelty, report.UniqueElements = novelty(text, baseline.PriorScripts)
	report.SuccessMatching, report.MatchedElements, report.MissingElements = successMatching(text, baseline.Elements)
	report.Reliability = reliability(baseline.SampleSize, baseline.DataQuality)

	w := weights.withDefaults()
	totalWeight := w.Coverage + w.Novelty + w.SuccessMatching + w.Reliability

	if totalWeight > 0 {
		report.Overall = (w.Coverage*report.Coverage +
			w.Novelty*report.Novelty +
			w.SuccessMatching*report.SuccessMatching +
			w.Reliability*report.Reliability) / totalWeight
	}

	return report
}

// coverage scores how many success-pattern markers the script touches.
// The raw fraction is rescaled so the coverage target maps to a full score,
// linear below it and clipped above.
func coverage(text string, markers []Marker) (float64, []string, []string) {
	if len(markers) == 0 {
		return 0, nil, nil
	}

	var covered, missing []string

	for _, m := range markers {
		if keywordMatchRate(text, m.Keywords) >= markerKeywordThreshold {
			covered = append(covered, m.Name)
		} else {
			missing = append(missing, m.Name)
		}
	}

	raw := float64(len(covered)) / float64(len(markers))
	score := math.Min(1, raw/coverageTarget)

	return score, covered, missing
}

// novelty is 1 minus the highest word-overlap similarity to any prior script.
// A first script with no history is maximally novel by convention.
func novelty(text string, priorScripts []string) (float64, []string) {
	if len(priorScripts) == 0 {
		return 1, nil
	}

	words := wordSet(text)

	maxSimilarity := 0.0
	historyWords := make(map[string]struct{})

	for _, prior := range priorScripts {
		priorWords := wordSet(strings.ToLower(prior))

		if sim := jaccard(words, priorWords); sim > maxSimilarity {
			maxSimilarity = sim
		}

		for w := range priorWords {
			historyWords[w] = struct{}{}
		}
	}

	var unique []string

	for w := range words {
		if _, seen := historyWords[w]; !seen && len(w) >= 3 {
			unique = append(unique, w)
		}
	}

	sort.Strings(unique)

	if len(unique) > maxUniqueElements {
		unique = unique[:maxUniqueElements]
	}

	return math.Max(0, 1-maxSimilarity), unique
}

// successMatching scores the script against the curated success-element
// taxonomy, every element weighted equally.
func successMatching(text string, elements []Element) (float64, []string, []string) {
	if len(elements) == 0 {
		return 0, nil, nil
	}

	var matched, missing []string

	for _, e := range elements {
		if keywordMatchRate(text, e.Keywords) >= elementMatchThreshold {
			matched = append(matched, e.Name)
		} else {
			missing = append(missing, e.Name)
		}
	}

	return float64(len(matched)) / float64(len(elements)), matched, missing
}

// reliability combines a diminishing-returns sample-size curve with the
// evidence base's data quality.
func reliability(sampleSize int, dq DataQuality) float64 {
	return sampleAdequacy(sampleSize) * dataQualityScore(dq)
}

func sampleAdequacy(n int) float64 {
	switch {
	case n >= 100:
		return 1.0
	case n >= 50:
		return 0.8
	case n >= 20:
		return 0.6
	case n >= 10:
		return 0.4
	default:
		return 0.2
	}
}

func dataQualityScore(dq DataQuality) float64 {
	// Ungraded facets are assumed decent rather than absent.
	const neutral = 0.8

	if dq.Completeness == 0 {
		dq.Completeness = neutral
	}

	if dq.Consistency == 0 {
		dq.Consistency = neutral
	}

	if dq.Accuracy == 0 {
		dq.Accuracy = neutral
	}

	return (dq.Completeness + dq.Consistency + dq.Accuracy) / 3
}

func keywordMatchRate(text string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}

	matches := 0

	for _, kw := range keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			matches++
		}
	}

	return float64(matches) / float64(len(keywords))
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})

	for _, w := range strings.Fields(text) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if w != "" {
			set[w] = struct{}{}
		}
	}

	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0

	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection

	return float64(intersection) / float64(union)
}
