package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"reviewq/pkg/queue"
)

// ItemSource provides the completed items the detector analyses. The
// queue store satisfies this.
type ItemSource interface {
	CompletedSince(ctx context.Context, since time.Time) ([]queue.Item, error)
}

// cluster accumulates items whose feedback token sets overlap.
type cluster struct {
	language  string
	tokens    map[string]struct{}
	items     []queue.Item
	firstSeen time.Time
	lastSeen  time.Time
}

// detect groups recent fail/edge_case items into patterns and upserts
// them into the store. Clustering is greedy: an item joins the first
// same-language cluster whose accumulated token set is similar enough,
// otherwise it seeds a new one.
func detect(ctx context.Context, source ItemSource, patterns PatternStore, p Params) (*Result, error) {
	since := time.Now().AddDate(0, 0, -p.LookbackDays)
	items, err := source.CompletedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load completed items: %w", err)
	}

	var clusters []*cluster
	for _, it := range items {
		if it.Decision != queue.DecisionFail && it.Decision != queue.DecisionEdgeCase {
			continue
		}
		toks := tokenize(it.Feedback + " " + it.ScenarioID)
		if len(toks) == 0 {
			continue
		}

		var joined *cluster
		for _, c := range clusters {
			if c.language != it.LanguageCode {
				continue
			}
			if jaccard(c.tokens, toks) >= p.SimilarityThreshold {
				joined = c
				break
			}
		}
		if joined == nil {
			joined = &cluster{
				language:  it.LanguageCode,
				tokens:    make(map[string]struct{}),
				firstSeen: completedAt(it),
			}
			clusters = append(clusters, joined)
		}
		for t := range toks {
			joined.tokens[t] = struct{}{}
		}
		joined.items = append(joined.items, it)
		if at := completedAt(it); at.After(joined.lastSeen) {
			joined.lastSeen = at
		}
		if at := completedAt(it); at.Before(joined.firstSeen) {
			joined.firstSeen = at
		}
	}

	res := &Result{}
	for _, c := range clusters {
		if len(c.items) < p.MinPatternSize {
			continue
		}
		res.PatternsDiscovered++

		created, err := patterns.Upsert(ctx, c.toPattern())
		if err != nil {
			return nil, fmt.Errorf("store pattern: %w", err)
		}
		if created {
			res.PatternsNew++
		} else {
			res.PatternsUpdated++
		}
	}
	return res, nil
}

func (c *cluster) toPattern() *Pattern {
	seen := make(map[string]struct{})
	var scenarios []string
	for _, it := range c.items {
		if _, ok := seen[it.ScenarioID]; ok {
			continue
		}
		seen[it.ScenarioID] = struct{}{}
		scenarios = append(scenarios, it.ScenarioID)
	}
	sort.Strings(scenarios)

	return &Pattern{
		PatternKey:     c.language + ":" + dominantScenario(c.items),
		LanguageCode:   c.language,
		ScenarioIDs:    scenarios,
		ItemCount:      len(c.items),
		SampleFeedback: c.items[0].Feedback,
		FirstSeen:      c.firstSeen,
		LastSeen:       c.lastSeen,
	}
}

// dominantScenario picks the most frequent scenario id in the cluster;
// ties break toward the lexicographically smallest so the pattern key is
// stable between runs.
func dominantScenario(items []queue.Item) string {
	counts := make(map[string]int)
	for _, it := range items {
		counts[it.ScenarioID]++
	}
	best := ""
	bestN := 0
	for id, n := range counts {
		if n > bestN || (n == bestN && id < best) {
			best, bestN = id, n
		}
	}
	return best
}

func completedAt(it queue.Item) time.Time {
	if it.CompletedAt != nil {
		return *it.CompletedAt
	}
	return it.UpdatedAt
}

// tokenize lowercases and splits on non-alphanumeric runes, dropping
// tokens shorter than three characters.
func tokenize(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	out := make(map[string]struct{})
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		out[f] = struct{}{}
	}
	return out
}

// jaccard is the intersection size over the union size.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range b {
		if _, ok := a[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
