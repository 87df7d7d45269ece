package binsession

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/SmartBin/SmartBin-Backend/internal/db"
	"gorm.io/gorm"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// Recorder keeps the history of finished sessions.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
	History(ctx context.Context, userID string, limit int) ([]Record, error)
}

// GormRecorder stores history in smartbin.bin_sessions.
type GormRecorder struct {
	db *gorm.DB
}

func NewGormRecorder(d *gorm.DB) *GormRecorder {
	return &GormRecorder{db: d}
}

// Migrate creates the smartbin schema and the history table.
func (g *GormRecorder) Migrate() error {
	if err := db.Migrate(g.db, &Record{}); err != nil {
		return fmt.Errorf("migrate bin_sessions: %w", err)
	}
	return nil
}

func (g *GormRecorder) Record(ctx context.Context, rec Record) error {
	return g.db.WithContext(ctx).Create(&rec).Error
}

func (g *GormRecorder) History(ctx context.Context, userID string, limit int) ([]Record, error) {
	var out []Record
	err := g.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("opened_at DESC").
		Limit(clampLimit(limit)).
		Find(&out).Error
	return out, err
}

// MemoryRecorder keeps the most recent records in process, for when no
// database is configured.
type MemoryRecorder struct {
	mu      sync.Mutex
	records []Record
	max     int
}

func NewMemoryRecorder(size int) *MemoryRecorder {
	if size <= 0 {
		size = 1000
	}
	return &MemoryRecorder{max: size}
}

func (m *MemoryRecorder) Record(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	if over := len(m.records) - m.max; over > 0 {
		m.records = append([]Record(nil), m.records[over:]...)
	}
	return nil
}

func (m *MemoryRecorder) History(ctx context.Context, userID string, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Record{}
	for _, r := range m.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OpenedAt.After(out[j].OpenedAt) })
	if n := clampLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	}
	return limit
}
