package matching

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// Metric names a string similarity algorithm.
type Metric string

const (
	// MetricLCS scores 2*LCS/(len(a)+len(b)) over runes.
	MetricLCS Metric = "lcs"
	// MetricJaroWinkler scores with Jaro-Winkler similarity.
	MetricJaroWinkler Metric = "jaro_winkler"
)

// ContainmentFloor is the minimum score when one name contains the other.
const ContainmentFloor = 0.85

// Similarity is a scored comparison against one candidate.
type Similarity struct {
	Candidate string
	Score     float64
}

// Scorer compares meeting names.
type Scorer struct {
	metric Metric
}

// NewScorer returns a scorer for metric, defaulting to LCS.
func NewScorer(metric Metric) *Scorer {
	if metric != MetricJaroWinkler {
		metric = MetricLCS
	}
	return &Scorer{metric: metric}
}

// Metric returns the algorithm in use.
func (s *Scorer) Metric() Metric {
	return s.metric
}

// Score compares a query name with a candidate name. Both are normalized
// first. Case-insensitive equality scores exactly 1.0; containment of one
// non-empty form in the other lifts the score to at least ContainmentFloor.
func (s *Scorer) Score(query, candidate string) Similarity {
	a := strings.ToLower(NormalizeName(query))
	b := strings.ToLower(NormalizeName(candidate))

	if a == b {
		return Similarity{Candidate: candidate, Score: 1.0}
	}

	score := s.ratio(a, b)
	if a != "" && b != "" && (strings.Contains(a, b) || strings.Contains(b, a)) {
		score = max(score, ContainmentFloor)
	}
	return Similarity{Candidate: candidate, Score: score}
}

func (s *Scorer) ratio(a, b string) float64 {
	switch s.metric {
	case MetricJaroWinkler:
		return float64(edlib.JaroWinklerSimilarity(a, b))
	default:
		total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
		if total == 0 {
			return 1.0
		}
		return 2 * float64(edlib.LCS(a, b)) / float64(total)
	}
}

// FindBestMatch returns the highest scoring candidate if it reaches
// threshold. Candidates are scanned in lexicographic order and the first
// to reach the maximum wins, so ties resolve the same way on every run.
func (s *Scorer) FindBestMatch(query string, candidates []string, threshold float64) (Similarity, bool) {
	sorted := make([]string, len(candidates))
	copy(sorted, candidates)
	sort.Strings(sorted)

	best := Similarity{}
	found := false
	for _, c := range sorted {
		sim := s.Score(query, c)
		if sim.Score == 1.0 {
			return sim, true
		}
		if !found || sim.Score > best.Score {
			best = sim
			found = true
		}
	}

	if !found || best.Score < threshold {
		return Similarity{Score: best.Score}, false
	}
	return best, true
}
