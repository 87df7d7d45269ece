package binsession

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/blake2b"
)

// Record is a finished session as kept in history.
type Record struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	BinID          string         `gorm:"not null;index" json:"bin_id"`
	BinName        string         `json:"bin_name"`
	UserID         string         `gorm:"not null;index:idx_bin_sessions_user_opened,priority:1" json:"user_id"`
	NFCFingerprint string         `gorm:"size:64" json:"-"`
	OpenedAt       time.Time      `gorm:"not null;index:idx_bin_sessions_user_opened,priority:2,sort:desc" json:"opened_at"`
	ClosedAt       time.Time      `gorm:"not null;index" json:"closed_at"`
	CloseReason    string         `gorm:"not null" json:"close_reason"`
	Transitions    pq.StringArray `gorm:"type:text[]" json:"transitions"`
	Warnings       pq.StringArray `gorm:"type:text[]" json:"warnings"`
	DetectionID    *string        `json:"detection_id,omitempty"`
	Material       string         `json:"material,omitempty"`
	PointsAwarded  int            `json:"points_awarded"`
	PointsBefore   *int           `json:"points_before,omitempty"`
	PointsAfter    *int           `json:"points_after,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (Record) TableName() string {
	return "smartbin.bin_sessions"
}

// Fingerprint hashes an NFC code so history never stores the card value.
func Fingerprint(nfcCode string) string {
	if nfcCode == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(nfcCode))
	return hex.EncodeToString(sum[:])
}

func newRecord(s *session) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := uuid.Parse(s.id)
	if err != nil {
		id = uuid.New()
	}
	rec := Record{
		ID:             id,
		BinID:          s.binID,
		BinName:        s.binName,
		UserID:         s.userID,
		NFCFingerprint: Fingerprint(s.nfcCode),
		OpenedAt:       s.openedAt,
		CloseReason:    s.closeReason,
		Warnings:       pq.StringArray(append([]string{}, s.warnings...)),
		PointsBefore:   s.pointsBefore,
		PointsAfter:    s.pointsAfter,
	}
	if s.closedAt != nil {
		rec.ClosedAt = *s.closedAt
	}
	for _, st := range s.history {
		rec.Transitions = append(rec.Transitions, string(st))
	}
	if d := s.detection; d != nil {
		detID := d.ID
		rec.DetectionID = &detID
		rec.Material = d.MaterialType
		rec.PointsAwarded = d.PointsAwarded
	}
	return rec
}
