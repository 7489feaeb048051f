package voice

import (
	"context"
	"errors"
	"sync"

	"mandi/pkg/domain"
)

// ErrNoSamples is returned when no canned utterance exists for a language.
var ErrNoSamples = errors.New("no samples for language")

// Utterance is one captured (or simulated) spoken phrase.
type Utterance struct {
	Text     string
	Language domain.Language
}

// Recognizer is the voice capture collaborator.
type Recognizer interface {
	Capture(ctx context.Context, lang domain.Language) (Utterance, error)
}

// DefaultSamples are the canned utterances used when live capture is
// unavailable.
var DefaultSamples = []Utterance{
	{Language: domain.LanguageHindi, Text: "मेरे पास 50 किलो ताजे लाल प्याज हैं, 40 रुपये प्रति किलो।"},
	{Language: domain.LanguageEnglish, Text: "I have 100 kg of fresh tomatoes available for 30 rupees per kg."},
	{Language: domain.LanguageHindi, Text: "बढ़िया क्वालिटी के आलू, 25 रुपये किलो, तुरंत संपर्क करें।"},
	{Language: domain.LanguageEnglish, Text: "Selling high quality Basmati rice, 95 rupees per kg, 500kg available."},
}

// Sampler is the deterministic capture fallback: it cycles through the
// canned utterances for the requested language, wrapping after exhaustion.
// A single counter is shared across languages and advances once per call,
// never randomly, so consumers can assert exact sequencing.
type Sampler struct {
	mu      sync.Mutex
	samples []Utterance
	counter int
}

// NewSampler builds a sampler over the given samples; nil means
// DefaultSamples.
func NewSampler(samples []Utterance) *Sampler {
	if samples == nil {
		samples = DefaultSamples
	}
	return &Sampler{samples: samples}
}

// Capture returns the next canned utterance for the language.
func (s *Sampler) Capture(_ context.Context, lang domain.Language) (Utterance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var relevant []Utterance
	for _, sample := range s.samples {
		if sample.Language == lang {
			relevant = append(relevant, sample)
		}
	}
	if len(relevant) == 0 {
		return Utterance{}, ErrNoSamples
	}
	sample := relevant[s.counter%len(relevant)]
	s.counter++
	return sample, nil
}

// Reset rewinds the shared counter. For tests.
func (s *Sampler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter = 0
}
