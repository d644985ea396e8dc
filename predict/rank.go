package predict

import (
	"sort"

	"github.com/tsuji-tomonori/RakugakiBattleOnLine/vocab"
)

// scoreScale turns a [0,1] confidence into the integer-ish range clients
// display.
const scoreScale = 10000

// TopN is how many ranked entries are surfaced to clients.
const TopN = 5

// LabelScore is one ranked entry on the wire.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Rank scales the per-class confidences, resolves class indexes to display
// labels and sorts descending by score. It returns the full ranking and a
// label-to-score lookup for the round's target label. Ties keep class-index
// order.
func Rank(confidences []float32, v *vocab.Vocabulary) ([]LabelScore, map[string]float64) {
	ranked := make([]LabelScore, 0, len(confidences))
	byLabel := make(map[string]float64, len(confidences))

	for i, c := range confidences {
		score := float64(c) * scoreScale
		label := v.Display(i)
		ranked = append(ranked, LabelScore{Label: label, Score: score})
		byLabel[label] = score
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, byLabel
}

// Top returns at most n leading entries of a ranking.
func Top(ranked []LabelScore, n int) []LabelScore {
	if len(ranked) < n {
		n = len(ranked)
	}
	return ranked[:n]
}
