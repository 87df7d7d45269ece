package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Bin statuses as stored by the bin service.
const (
	BinStatusActive      = "active"
	BinStatusInactive    = "inactive"
	BinStatusMaintenance = "maintenance"
	BinStatusFull        = "full"
)

// Coordinate is a nullable latitude/longitude. The bin and reclamation services
// serialize decimals as strings ("36.806500"), older payloads use numbers.
type Coordinate struct {
	Value float64
	Valid bool
}

// NewCoordinate returns a valid coordinate.
func NewCoordinate(v float64) Coordinate {
	return Coordinate{Value: v, Valid: true}
}

func (c *Coordinate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Coordinate{}
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		s, err := strconv.Unquote(raw)
		if err != nil {
			return fmt.Errorf("coordinate: %w", err)
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*c = Coordinate{}
			return nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("coordinate %q: %w", raw, err)
	}
	*c = Coordinate{Value: v, Valid: true}
	return nil
}

func (c Coordinate) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(c.Value, 'f', 6, 64)), nil
}

// Bin is a physical smart bin as returned by the bin service.
type Bin struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	QRCode        string     `json:"qr_code"`
	Location      string     `json:"location"`
	Latitude      Coordinate `json:"latitude"`
	Longitude     Coordinate `json:"longitude"`
	Capacity      int        `json:"capacity"`   // liters
	FillLevel     int        `json:"fill_level"` // percent
	Status        string     `json:"status"`
	IsOpen        bool       `json:"is_open"`
	LastOpenedAt  *time.Time `json:"last_opened_at"`
	LastEmptiedAt *time.Time `json:"last_emptied_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// BinInput is the writable subset of a bin.
type BinInput struct {
	Name      string     `json:"name"`
	QRCode    string     `json:"qr_code"`
	Location  string     `json:"location"`
	Latitude  Coordinate `json:"latitude"`
	Longitude Coordinate `json:"longitude"`
	Capacity  int        `json:"capacity"`
	Status    string     `json:"status"`
}

// Detection is a material detection logged by a bin.
type Detection struct {
	ID                string    `json:"id"`
	BinID             string    `json:"bin_id"`
	UserNFCCode       string    `json:"user_nfc_code"`
	MaterialType      string    `json:"material_type"`
	Confidence        float64   `json:"confidence"`
	PointsAwarded     int       `json:"points_awarded"`
	PointsAddedToUser bool      `json:"points_added_to_user"`
	CreatedAt         time.Time `json:"created_at"`
}

// DetectionStats is one day of aggregated detections.
type DetectionStats struct {
	Date               string    `json:"date"`
	TotalDetections    int       `json:"total_detections"`
	PlasticCount       int       `json:"plastic_count"`
	PaperCount         int       `json:"paper_count"`
	GlassCount         int       `json:"glass_count"`
	MetalCount         int       `json:"metal_count"`
	OrganicCount       int       `json:"organic_count"`
	OtherCount         int       `json:"other_count"`
	TotalPointsAwarded int       `json:"total_points_awarded"`
	UpdatedAt          time.Time `json:"updated_at"`
	Message            string    `json:"message,omitempty"`
}

// SimulateDetectionInput triggers a fake detection, for testing without Node-RED.
type SimulateDetectionInput struct {
	BinID       string  `json:"bin_id"`
	UserNFCCode string  `json:"user_nfc_code"`
	Material    string  `json:"material"`
	Confidence  float64 `json:"confidence"`
}

// User is an account in the auth service.
type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Points      *int      `json:"points"`
	NFCCode     string    `json:"nfc_code"`
	PhoneNumber string    `json:"phone_number"`
	IsStaff     bool      `json:"is_staff"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
}

// PointsTransaction is one entry of a user's points history.
type PointsTransaction struct {
	ID              string    `json:"id"`
	User            string    `json:"user"`
	UserUsername    string    `json:"user_username"`
	Amount          int       `json:"amount"`
	TransactionType string    `json:"transaction_type"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"created_at"`
}

// ClerkSyncRequest is sent to the auth service when Clerk reports a user change.
type ClerkSyncRequest struct {
	ClerkID   string `json:"clerk_id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	EventType string `json:"event_type"`
}

// Reclamation is a user complaint about a bin.
type Reclamation struct {
	ID              string     `json:"id"`
	UserNFCCode     string     `json:"user_nfc_code"`
	BinID           *string    `json:"bin_id"`
	ReclamationType string     `json:"reclamation_type"`
	Title           string     `json:"title"`
	Message         string     `json:"message"`
	Location        string     `json:"location"`
	Latitude        Coordinate `json:"latitude"`
	Longitude       Coordinate `json:"longitude"`
	Status          string     `json:"status"`
	Priority        string     `json:"priority"`
	AdminNotes      string     `json:"admin_notes,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ReclamationInput is the payload accepted when filing a reclamation.
type ReclamationInput struct {
	UserNFCCode     string     `json:"user_nfc_code"`
	BinID           *string    `json:"bin_id,omitempty"`
	ReclamationType string     `json:"reclamation_type"`
	Title           string     `json:"title"`
	Message         string     `json:"message"`
	Location        string     `json:"location,omitempty"`
	Latitude        Coordinate `json:"latitude"`
	Longitude       Coordinate `json:"longitude"`
	Priority        string     `json:"priority,omitempty"`
}

// ReclamationFilter narrows a reclamation listing. Empty fields are ignored.
type ReclamationFilter struct {
	UserNFCCode string
	BinID       string
	Status      string
	Type        string
}

// decodeList accepts both a bare JSON array and a paginated {"results": [...]} envelope.
func decodeList(raw []byte, out any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		return json.Unmarshal(raw, out)
	}
	var page struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return err
	}
	if len(page.Results) == 0 {
		return json.Unmarshal([]byte("[]"), out)
	}
	return json.Unmarshal(page.Results, out)
}
