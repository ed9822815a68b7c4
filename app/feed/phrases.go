package feed

import (
	"math/rand/v2"
	"sync"
)

// PhraseBank lists the interchangeable wordings used by the Describer.
// The first entry of each list is the default wording.
type PhraseBank struct {
	Intros          []string
	ColourIntros    []string
	ColourAdjective []string
	EngineIntros    []string
}

func DefaultPhraseBank() PhraseBank {
	return PhraseBank{
		Intros: []string{
			"We are delighted to offer this",
			"Check out this",
			"New arrival:",
			"Just arrived:",
			"Here we have a",
		},
		ColourIntros: []string{
			"Finished in",
			"Presented in",
			"Looks fantastic in",
			"Exterior finished in",
			"Dressed in",
		},
		ColourAdjective: []string{
			"stunning",
			"beautiful",
			"striking",
			"gleaming",
			"immaculate",
			"eye-catching",
			"pristine",
			"classic",
			"gorgeous",
		},
		EngineIntros: []string{
			"Powered by a",
			"Driven by a",
			"Features a reliable",
			"Under the bonnet is a",
			"Equipped with a",
		},
	}
}

// Selector picks an index in [0, n) for a phrase list of length n.
type Selector interface {
	Pick(n int) int
}

// FirstSelector always picks the first phrase.
type FirstSelector struct{}

func (FirstSelector) Pick(int) int { return 0 }

// SeededSelector picks phrases pseudo-randomly from a fixed seed, so the
// same seed and the same input always yield the same descriptions.
type SeededSelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSeededSelector(seed uint64) *SeededSelector {
	return &SeededSelector{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *SeededSelector) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

func pick(sel Selector, phrases []string, fallback string) string {
	if len(phrases) == 0 {
		return fallback
	}
	if sel == nil {
		return phrases[0]
	}
	i := sel.Pick(len(phrases))
	if i < 0 || i >= len(phrases) {
		i = 0
	}
	return phrases[i]
}
