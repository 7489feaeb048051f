package store

import (
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"mandi/pkg/domain"
)

const roleSettingName = "user_mode"

// GormSnapshot implements Snapshot on Postgres via GORM. Each save replaces
// the whole record set inside one transaction, keeping the snapshot
// semantics of the other backends; cross-record consistency is still not
// transactional.
type GormSnapshot struct {
	db *gorm.DB
}

// NewGormSnapshot opens the DB and runs auto-migrations.
func NewGormSnapshot(dsn string) (*GormSnapshot, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&ListingModel{}, &SessionModel{}, &SettingModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormSnapshot{db: db}, nil
}

func (g *GormSnapshot) LoadListings() ([]domain.Listing, error) {
	var rows []ListingModel
	if err := g.db.Order("position asc").Find(&rows).Error; err != nil {
		slog.Warn("load listings snapshot, starting empty", "err", err)
		return []domain.Listing{}, nil
	}
	listings := make([]domain.Listing, 0, len(rows))
	for _, row := range rows {
		var description domain.TranslationPair
		if err := json.Unmarshal(row.Description, &description); err != nil {
			slog.Warn("unreadable listing description, skipping row", "id", row.ID, "err", err)
			continue
		}
		listings = append(listings, domain.Listing{
			ID:          row.ID,
			VendorName:  row.VendorName,
			Item:        row.Item,
			Quantity:    row.Quantity,
			Price:       row.Price,
			Currency:    row.Currency,
			Description: description,
			ImageURL:    row.ImageURL,
			Category:    domain.Category(row.Category),
			CreatedAt:   row.CreatedAt,
			UpdatedAt:   row.UpdatedAt,
			Status:      domain.ListingStatus(row.Status),
		})
	}
	return listings, nil
}

func (g *GormSnapshot) SaveListings(listings []domain.Listing) error {
	rows := make([]ListingModel, 0, len(listings))
	for i, listing := range listings {
		description, err := json.Marshal(listing.Description)
		if err != nil {
			return fmt.Errorf("encode listing description: %w", err)
		}
		rows = append(rows, ListingModel{
			ID:          listing.ID,
			Position:    i,
			VendorName:  listing.VendorName,
			Item:        listing.Item,
			Quantity:    listing.Quantity,
			Price:       listing.Price,
			Currency:    listing.Currency,
			Description: description,
			ImageURL:    listing.ImageURL,
			Category:    string(listing.Category),
			CreatedAt:   listing.CreatedAt,
			UpdatedAt:   listing.UpdatedAt,
			Status:      string(listing.Status),
		})
	}
	return g.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&ListingModel{}).Error; err != nil {
			return fmt.Errorf("clear listings: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert listings: %w", err)
		}
		return nil
	})
}

func (g *GormSnapshot) LoadSessions() ([]domain.ChatSession, error) {
	var rows []SessionModel
	if err := g.db.Find(&rows).Error; err != nil {
		slog.Warn("load sessions snapshot, starting empty", "err", err)
		return []domain.ChatSession{}, nil
	}
	sessions := make([]domain.ChatSession, 0, len(rows))
	for _, row := range rows {
		messages := []domain.Message{}
		if len(row.Messages) > 0 {
			if err := json.Unmarshal(row.Messages, &messages); err != nil {
				slog.Warn("unreadable session messages, skipping row", "id", row.ID, "err", err)
				continue
			}
		}
		sessions = append(sessions, domain.ChatSession{
			ID:        row.ID,
			ListingID: row.ListingID,
			VendorID:  row.VendorID,
			BuyerID:   row.BuyerID,
			Messages:  messages,
		})
	}
	return sessions, nil
}

func (g *GormSnapshot) SaveSessions(sessions []domain.ChatSession) error {
	rows := make([]SessionModel, 0, len(sessions))
	for _, session := range sessions {
		messages, err := json.Marshal(session.Messages)
		if err != nil {
			return fmt.Errorf("encode session messages: %w", err)
		}
		rows = append(rows, SessionModel{
			ID:        session.ID,
			ListingID: session.ListingID,
			VendorID:  session.VendorID,
			BuyerID:   session.BuyerID,
			Messages:  messages,
		})
	}
	return g.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&SessionModel{}).Error; err != nil {
			return fmt.Errorf("clear sessions: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert sessions: %w", err)
		}
		return nil
	})
}

func (g *GormSnapshot) LoadRole() (domain.Role, error) {
	var row SettingModel
	err := g.db.First(&row, "name = ?", roleSettingName).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			slog.Warn("load role snapshot, using default", "err", err)
		}
		return domain.DefaultRole, nil
	}
	role := domain.Role(row.Value)
	if !role.Valid() {
		slog.Warn("unreadable role snapshot, using default", "value", row.Value)
		return domain.DefaultRole, nil
	}
	return role, nil
}

func (g *GormSnapshot) SaveRole(role domain.Role) error {
	row := SettingModel{Name: roleSettingName, Value: string(role)}
	if err := g.db.Save(&row).Error; err != nil {
		return fmt.Errorf("write role setting: %w", err)
	}
	return nil
}
