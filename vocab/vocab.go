// Package vocab maps the classifier's internal class indexes to the labels
// players see. The lookup is two-stage: vocabulary index to canonical label
// (label csv), then canonical label to its translation (translation csv),
// falling back to the canonical label when no translation exists. The same
// display labels double as the prompt pool for start_game.
package vocab

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"

	"github.com/tsuji-tomonori/RakugakiBattleOnLine/domain"
)

// Vocabulary is an immutable index-to-display-label mapping.
type Vocabulary struct {
	display []string // display label per class index
}

// Load reads the label csv (header row, then "canonical,index" rows) and
// the translation csv ("canonical,translated" rows, no header).
func Load(labelPath, translationPath string) (*Vocabulary, error) {
	labelFile, err := os.Open(labelPath)
	if err != nil {
		return nil, err
	}
	defer labelFile.Close()

	translationFile, err := os.Open(translationPath)
	if err != nil {
		return nil, err
	}
	defer translationFile.Close()

	return Parse(labelFile, translationFile)
}

// Parse builds a Vocabulary from the two csv streams.
func Parse(labels, translations io.Reader) (*Vocabulary, error) {
	canonical, err := parseLabels(labels)
	if err != nil {
		return nil, err
	}
	translate, err := parseTranslations(translations)
	if err != nil {
		return nil, err
	}

	display := make([]string, len(canonical))
	for i, label := range canonical {
		if t, ok := translate[label]; ok {
			display[i] = t
		} else {
			display[i] = label
		}
	}
	return &Vocabulary{display: display}, nil
}

func parseLabels(r io.Reader) ([]string, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse label csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("label csv has no data rows")
	}

	byIndex := make(map[int]string, len(rows)-1)
	max := -1
	for _, row := range rows[1:] { // skip header
		if len(row) < 2 {
			return nil, fmt.Errorf("label csv row too short: %q", row)
		}
		idx, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("label csv index %q: %w", row[1], err)
		}
		byIndex[idx] = row[0]
		if idx > max {
			max = idx
		}
	}

	canonical := make([]string, max+1)
	for i := 0; i <= max; i++ {
		label, ok := byIndex[i]
		if !ok {
			return nil, fmt.Errorf("label csv missing index %d", i)
		}
		canonical[i] = label
	}
	return canonical, nil
}

func parseTranslations(r io.Reader) (map[string]string, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse translation csv: %w", err)
	}
	translate := make(map[string]string, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		translate[row[0]] = row[1]
	}
	return translate, nil
}

// Size returns the number of known classes.
func (v *Vocabulary) Size() int {
	return len(v.display)
}

// Display returns the player-facing label for a class index.
func (v *Vocabulary) Display(index int) string {
	return v.display[index]
}

// Labels returns all display labels in class-index order.
func (v *Vocabulary) Labels() []string {
	out := make([]string, len(v.display))
	copy(out, v.display)
	return out
}

// Sample draws n distinct prompts without replacement. It fails with
// domain.ErrInsufficientVocabulary when n exceeds the vocabulary size.
func (v *Vocabulary) Sample(n int) ([]string, error) {
	if n < 0 || n > len(v.display) {
		return nil, fmt.Errorf("%w: want %d of %d", domain.ErrInsufficientVocabulary, n, len(v.display))
	}
	picks := rand.Perm(len(v.display))[:n]
	prompts := make([]string, n)
	for i, p := range picks {
		prompts[i] = v.display[p]
	}
	return prompts, nil
}
