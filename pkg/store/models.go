package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used by the relational snapshot backend. Translation pairs and
// message logs are stored as JSON columns; the engine never queries inside
// them.
type ListingModel struct {
	ID          string `gorm:"primaryKey"`
	Position    int    `gorm:"not null;index"`
	VendorName  string
	Item        string `gorm:"not null"`
	Quantity    string
	Price       float64        `gorm:"not null"`
	Currency    string         `gorm:"not null"`
	Description datatypes.JSON `gorm:"not null"`
	ImageURL    string
	Category    string
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
	Status      string    `gorm:"not null"`
}

type SessionModel struct {
	ID        string `gorm:"primaryKey"`
	ListingID string `gorm:"uniqueIndex;not null"`
	VendorID  string `gorm:"not null"`
	BuyerID   string `gorm:"not null"`
	Messages  datatypes.JSON
}

// SettingModel holds scalar records such as the active role.
type SettingModel struct {
	Name  string `gorm:"primaryKey"`
	Value string `gorm:"not null"`
}
