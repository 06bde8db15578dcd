// Package tokenize provides token counting for segment budgeting.
//
// Two counters are available: a heuristic one (chars / 4, always safe)
// and one backed by a pretrained tokenizer vocabulary for accurate
// counts against the extraction model.
package tokenize

import (
	"fmt"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// Counter estimates how many model tokens a string consumes.
type Counter interface {
	Count(text string) int
}

// Heuristic approximates tokens as len(text)/4 + 1. It never
// under-reports to zero, so a budget check against it is conservative
// for typical English chat text.
type Heuristic struct{}

func (Heuristic) Count(text string) int {
	return len(text)/4 + 1
}

// Pretrained counts tokens with a real tokenizer vocabulary loaded
// from a local file (e.g. a downloaded tokenizer.json).
type Pretrained struct {
	tk *tokenizer.Tokenizer
}

// NewPretrained loads a tokenizer definition from path.
func NewPretrained(path string) (*Pretrained, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer from %s: %w", path, err)
	}
	return &Pretrained{tk: tk}, nil
}

// Count encodes the text and returns the token count. Encoding
// failures fall back to the heuristic so budgeting never breaks a run.
func (p *Pretrained) Count(text string) int {
	en, err := p.tk.EncodeSingle(text)
	if err != nil {
		return Heuristic{}.Count(text)
	}
	return len(en.Ids)
}

// ForModel returns the counter to use for a run: the pretrained
// counter when a vocabulary path is configured, otherwise the
// heuristic.
func ForModel(vocabPath string) (Counter, error) {
	if vocabPath == "" {
		return Heuristic{}, nil
	}
	return NewPretrained(vocabPath)
}
