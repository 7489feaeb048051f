package ai

import (
	"context"

	"mandi/pkg/domain"
)

// ListingDraft is the structured result of extracting listing fields from a
// free-text utterance. A nil draft means the text did not describe a listing.
type ListingDraft struct {
	Item        string          `json:"item"`
	Quantity    string          `json:"quantity"`
	Price       float64         `json:"price"`
	Description string          `json:"description"`
	Category    domain.Category `json:"category"`
}

// Translator turns text into the target language. Implementations may fail;
// callers fall back to the input text so a user flow never blocks on
// translation.
type Translator interface {
	TranslateText(ctx context.Context, text string, target domain.Language) (string, error)
}

// Extractor pulls listing fields out of free text. (nil, nil) means the text
// matched nothing; callers leave the draft unconfirmed.
type Extractor interface {
	ExtractListing(ctx context.Context, text string) (*ListingDraft, error)
}

// Insighter produces a one-line market commentary for an item.
type Insighter interface {
	MarketInsight(ctx context.Context, item string) (string, error)
}
