package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"mandi/internal/util"
	"mandi/pkg/domain"
)

// Draft is an unconfirmed listing composed from an utterance. It has no id
// until the vendor confirms it.
type Draft struct {
	Item        string                 `json:"item"`
	Quantity    string                 `json:"quantity"`
	Price       float64                `json:"price"`
	Category    domain.Category        `json:"category"`
	Description domain.TranslationPair `json:"description"`
	VendorName  string                 `json:"vendorName"`
	Currency    string                 `json:"currency"`
}

// AddListing prepends a listing to the collection (newest first) and
// persists. The id must be fresh and unique; duplicates are rejected.
func (a *App) AddListing(listing domain.Listing) error {
	if strings.TrimSpace(listing.ID) == "" {
		return ErrInvalidListing
	}
	if listing.Price < 0 {
		return ErrInvalidListing
	}
	if listing.Status == "" {
		listing.Status = domain.StatusActive
	}
	a.mu.Lock()
	if !a.loaded {
		a.mu.Unlock()
		return ErrNotLoaded
	}
	if a.hasListing(listing.ID) {
		a.mu.Unlock()
		return ErrListingExists
	}
	a.listings = append([]domain.Listing{listing}, a.listings...)
	a.persistListings()
	a.mu.Unlock()

	a.publisher.ListingCreated(listing)
	return nil
}

// Listings returns the collection in order, newest first.
func (a *App) Listings() []domain.Listing {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]domain.Listing, len(a.listings))
	copy(out, a.listings)
	return out
}

// ListingByID finds a listing.
func (a *App) ListingByID(id string) (domain.Listing, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, listing := range a.listings {
		if listing.ID == id {
			return listing, true
		}
	}
	return domain.Listing{}, false
}

// SearchListings filters the collection, preserving order. Category "All"
// (or empty) matches everything; the query matches case-insensitively
// against item name and both halves of the description. No ranking.
func (a *App) SearchListings(query, category string) []domain.Listing {
	a.mu.RLock()
	defer a.mu.RUnlock()
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.Listing, 0, len(a.listings))
	for _, listing := range a.listings {
		if category != "" && category != domain.CategoryAll && string(listing.Category) != category {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(listing.Item), query) &&
			!strings.Contains(strings.ToLower(listing.Description.Original), query) &&
			!strings.Contains(strings.ToLower(listing.Description.Translated), query) {
			continue
		}
		out = append(out, listing)
	}
	return out
}

// MarkListingSold flips a listing to sold. The transition is terminal:
// calling again is a no-op, and there is no path back to active.
func (a *App) MarkListingSold(id string) (domain.Listing, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.loaded {
		return domain.Listing{}, ErrNotLoaded
	}
	for i, listing := range a.listings {
		if listing.ID != id {
			continue
		}
		if listing.Status == domain.StatusSold {
			return listing, nil
		}
		listing.Status = domain.StatusSold
		listing.UpdatedAt = time.Now().UTC()
		a.listings[i] = listing
		a.persistListings()
		return listing, nil
	}
	return domain.Listing{}, ErrListingNotFound
}

// SetListingImage attaches a photo URL to a listing.
func (a *App) SetListingImage(id, imageURL string) (domain.Listing, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.loaded {
		return domain.Listing{}, ErrNotLoaded
	}
	for i, listing := range a.listings {
		if listing.ID != id {
			continue
		}
		listing.ImageURL = imageURL
		listing.UpdatedAt = time.Now().UTC()
		a.listings[i] = listing
		a.persistListings()
		return listing, nil
	}
	return domain.Listing{}, ErrListingNotFound
}

// ComposeDraft turns a captured utterance into an unconfirmed draft:
// translate to English when needed, then extract structured fields. A
// failed translation falls back to the raw text; a failed or empty
// extraction yields no draft and no error, leaving the flow unconfirmed.
func (a *App) ComposeDraft(ctx context.Context, text string, lang domain.Language) (Draft, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Draft{}, false
	}
	translated := text
	if lang != domain.LanguageEnglish && a.translator != nil {
		out, err := a.translator.TranslateText(ctx, text, domain.LanguageEnglish)
		if err != nil || strings.TrimSpace(out) == "" {
			slog.Warn("draft translation failed, using original text", "err", err)
		} else {
			translated = out
		}
	}
	if a.extractor == nil {
		return Draft{}, false
	}
	details, err := a.extractor.ExtractListing(ctx, translated)
	if err != nil {
		slog.Warn("listing extraction failed", "err", err)
		return Draft{}, false
	}
	if details == nil {
		return Draft{}, false
	}

	draft := Draft{
		Item:       strings.TrimSpace(details.Item),
		Quantity:   strings.TrimSpace(details.Quantity),
		Price:      details.Price,
		Category:   details.Category,
		VendorName: "You (Farmer)",
		Currency:   "INR",
		Description: domain.TranslationPair{
			Original:   text,
			Translated: translated,
			Language:   lang,
		},
	}
	if draft.Item == "" {
		draft.Item = "Produce"
	}
	if draft.Quantity == "" {
		draft.Quantity = "N/A"
	}
	if draft.Price < 0 {
		draft.Price = 0
	}
	switch draft.Category {
	case domain.CategoryVegetables, domain.CategoryFruits, domain.CategoryGrains, domain.CategoryOther:
	default:
		draft.Category = domain.CategoryOther
	}
	return draft, true
}

// ConfirmDraft assigns a fresh id and adds the draft as an active listing.
func (a *App) ConfirmDraft(draft Draft) (domain.Listing, error) {
	now := time.Now().UTC()
	listing := domain.Listing{
		ID:          util.NewID(),
		VendorName:  draft.VendorName,
		Item:        draft.Item,
		Quantity:    draft.Quantity,
		Price:       draft.Price,
		Currency:    draft.Currency,
		Description: draft.Description,
		Category:    draft.Category,
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      domain.StatusActive,
	}
	if listing.Currency == "" {
		listing.Currency = "INR"
	}
	if err := a.AddListing(listing); err != nil {
		return domain.Listing{}, err
	}
	return listing, nil
}
