package webhooks

import (
	"context"
	"fmt"
	"time"

	"github.com/SmartBin/SmartBin-Backend/internal/db"
	"gorm.io/gorm"
)

// Delivery is one accepted webhook, keyed by its svix-id.
type Delivery struct {
	SvixID     string     `gorm:"primaryKey" json:"svix_id"`
	EventType  string     `gorm:"not null" json:"event_type"`
	ClerkID    string     `gorm:"index" json:"clerk_id"`
	SyncError  string     `json:"sync_error,omitempty"`
	ReceivedAt time.Time  `gorm:"not null;default:now()" json:"received_at"`
	SyncedAt   *time.Time `json:"synced_at,omitempty"`
}

func (Delivery) TableName() string {
	return "smartbin.webhook_deliveries"
}

// DeliveryStore makes webhook handling idempotent across Svix retries.
type DeliveryStore interface {
	// Claim records svixID and reports whether it was seen for the first time.
	Claim(ctx context.Context, svixID, eventType, clerkID string) (bool, error)
	// Finish stores the outcome of the sync.
	Finish(ctx context.Context, svixID string, syncErr error) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(d *gorm.DB) *GormStore {
	return &GormStore{db: d}
}

func (s *GormStore) Migrate() error {
	if err := db.Migrate(s.db, &Delivery{}); err != nil {
		return fmt.Errorf("migrate webhook_deliveries: %w", err)
	}
	return nil
}

func (s *GormStore) Claim(ctx context.Context, svixID, eventType, clerkID string) (bool, error) {
	res := s.db.WithContext(ctx).Exec(`
    insert into smartbin.webhook_deliveries
        (svix_id, event_type, clerk_id, received_at)
    values
        (?, ?, ?, now())
    on conflict (svix_id) do nothing
`, svixID, eventType, clerkID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) Finish(ctx context.Context, svixID string, syncErr error) error {
	updates := map[string]any{"synced_at": time.Now()}
	if syncErr != nil {
		updates = map[string]any{"sync_error": syncErr.Error()}
	}
	return s.db.WithContext(ctx).Model(&Delivery{}).Where("svix_id = ?", svixID).Updates(updates).Error
}
