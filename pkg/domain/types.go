package domain

import "time"

// Language tags the tongue a piece of original text was captured in.
type Language string

const (
	// LanguageHindi is the vendor-side tongue.
	LanguageHindi Language = "hi"
	// LanguageEnglish is the buyer-side tongue.
	LanguageEnglish Language = "en"
)

// Role identifies which side of a negotiation the current user is on.
type Role string

const (
	RoleVendor Role = "vendor"
	RoleBuyer  Role = "buyer"
)

// DefaultRole is used when no role has ever been persisted.
const DefaultRole = RoleVendor

// Valid reports whether the role is one of the two known values.
func (r Role) Valid() bool {
	return r == RoleVendor || r == RoleBuyer
}

// Tongue returns the language this role authors text in.
func (r Role) Tongue() Language {
	if r == RoleBuyer {
		return LanguageEnglish
	}
	return LanguageHindi
}

// Other returns the counterpart role.
func (r Role) Other() Role {
	if r == RoleBuyer {
		return RoleVendor
	}
	return RoleBuyer
}

type ListingStatus string

const (
	StatusActive ListingStatus = "active"
	StatusSold   ListingStatus = "sold"
)

type Category string

const (
	CategoryVegetables Category = "Vegetables"
	CategoryFruits     Category = "Fruits"
	CategoryGrains     Category = "Grains"
	CategoryOther      Category = "Other"
)

// CategoryAll is the search wildcard, not a stored category.
const CategoryAll = "All"

type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// TranslationPair links a user-authored text with its machine translation.
// Language names the tongue of Original; Translated is always the other
// tongue. Pairs are immutable once attached to a listing or message.
type TranslationPair struct {
	Original   string   `json:"original"`
	Translated string   `json:"translated"`
	Language   Language `json:"language"`
	Confidence float64  `json:"confidence,omitempty"`
}

// Listing is a vendor's offer. Identity is immutable; Status is the only
// field with a terminal transition (active -> sold).
type Listing struct {
	ID          string          `json:"id"`
	VendorName  string          `json:"vendorName"`
	Item        string          `json:"item"`
	Quantity    string          `json:"quantity"`
	Price       float64         `json:"price"`
	Currency    string          `json:"currency"`
	Description TranslationPair `json:"description"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Category    Category        `json:"category,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Status      ListingStatus   `json:"status"`
}

// Message is one utterance in a negotiation. Immutable once appended;
// ordering is by append order, the timestamp is informational.
type Message struct {
	ID        string          `json:"id"`
	SenderID  string          `json:"senderId"`
	Text      TranslationPair `json:"text"`
	Timestamp time.Time       `json:"timestamp"`
	IsSystem  bool            `json:"isSystem,omitempty"`
}

// ChatSession is the single negotiation thread for one listing. It holds
// the listing's id only, never the listing itself.
type ChatSession struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listingId"`
	VendorID  string    `json:"vendorId"`
	BuyerID   string    `json:"buyerId"`
	Messages  []Message `json:"messages"`
}

// MarketData is static wholesale reference data, read-only for the engine.
type MarketData struct {
	Item    string  `json:"item"`
	Average float64 `json:"average"`
	High    float64 `json:"high"`
	Low     float64 `json:"low"`
	Trend   Trend   `json:"trend"`
	Unit    string  `json:"unit"`
}
