package quality

import (
	"fmt"
	"sort"
	"strings"

	"github.com/counselkit/insight-engine/internal/core/domain"
)

const markerKeywordCount = 5

// DefaultElements is the curated success-element taxonomy scripts are
// matched against.
func DefaultElements() []Element {
	return []Element{
		{Name: "empathy", Keywords: []string{"understand", "feel", "concern", "listen"}},
		{Name: "pricing_transparency", Keywords: []string{"price", "cost", "plan", "payment", "total"}},
		{Name: "effect_explanation", Keywords: []string{"effect", "result", "improvement", "outcome"}},
		{Name: "social_proof", Keywords: []string{"experience", "example", "customer", "testimonial"}},
		{Name: "reassurance", Keywords: []string{"safe", "reassure", "comfortable", "gentle"}},
		{Name: "clear_next_step", Keywords: []string{"next", "appointment", "book", "schedule", "start"}},
	}
}

var markerStopWords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "from": {}, "have": {}, "will": {},
	"your": {}, "about": {}, "what": {}, "when": {}, "they": {}, "their": {},
	"would": {}, "could": {}, "there": {},
}

// MarkersFromRepresentatives derives one success-pattern marker per cluster
// from the representative texts: the cluster's most frequent meaningful words
// become its keywords. Deterministic for a fixed representative set.
func MarkersFromRepresentatives(reps []domain.Representative) []Marker {
	byLabel := make(map[int][]string)
	for _, r := range reps {
		byLabel[r.Label] = append(byLabel[r.Label], r.Text)
	}

	labels := make([]int, 0, len(byLabel))
	for label := range byLabel {
		labels = append(labels, label)
	}

	sort.Ints(labels)

	markers := make([]Marker, 0, len(labels))

	for _, label := range labels {
		keywords := topWords(strings.Join(byLabel[label], " "), markerKeywordCount)
		if len(keywords) == 0 {
			continue
		}

		markers = append(markers, Marker{
			Name:     fmt.Sprintf("cluster_%d", label),
			Keywords: keywords,
		})
	}

	return markers
}

// topWords returns the limit most frequent words of at least four letters,
// ties broken alphabetically.
func topWords(text string, limit int) []string {
	counts := make(map[string]int)

	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if len(w) < 4 {
			continue
		}

		if _, stop := markerStopWords[w]; stop {
			continue
		}

		counts[w]++
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}

	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}

		return words[i] < words[j]
	})

	if len(words) > limit {
		words = words[:limit]
	}

	return words
}
