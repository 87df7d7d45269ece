package seeds

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
	"github.com/goccy/go-yaml"
)

// DefaultInventoryPath is the inventory checked into the repository.
const DefaultInventoryPath = "seeds/bins.yaml"

// Inventory is a YAML list of bins to create.
type Inventory struct {
	Bins []BinSeed `yaml:"bins"`
}

type BinSeed struct {
	Name      string   `yaml:"name"`
	QRCode    string   `yaml:"qr_code"`
	Location  string   `yaml:"location"`
	Latitude  *float64 `yaml:"latitude"`
	Longitude *float64 `yaml:"longitude"`
	Capacity  int      `yaml:"capacity"`
	Status    string   `yaml:"status"`
}

// Input converts the seed to a bin service payload.
func (b BinSeed) Input() gateway.BinInput {
	in := gateway.BinInput{
		Name:     b.Name,
		QRCode:   b.QRCode,
		Location: b.Location,
		Capacity: b.Capacity,
		Status:   b.Status,
	}
	if in.Capacity == 0 {
		in.Capacity = 100
	}
	if in.Status == "" {
		in.Status = gateway.BinStatusActive
	}
	if b.Latitude != nil && b.Longitude != nil {
		in.Latitude = gateway.NewCoordinate(*b.Latitude)
		in.Longitude = gateway.NewCoordinate(*b.Longitude)
	}
	return in
}

// LoadInventory reads and validates an inventory file.
func LoadInventory(path string) (*Inventory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}
	return ParseInventory(raw)
}

func ParseInventory(raw []byte) (*Inventory, error) {
	var inv Inventory
	if err := yaml.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("failed to parse inventory: %w", err)
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Validate checks required fields and that QR codes are unique.
func (inv *Inventory) Validate() error {
	var errs []error
	seen := map[string]bool{}
	for i, b := range inv.Bins {
		label := fmt.Sprintf("bin #%d (%s)", i+1, b.Name)
		if strings.TrimSpace(b.Name) == "" || strings.TrimSpace(b.QRCode) == "" || strings.TrimSpace(b.Location) == "" {
			errs = append(errs, fmt.Errorf("%s: name, qr_code and location are required", label))
		}
		if seen[b.QRCode] {
			errs = append(errs, fmt.Errorf("%s: duplicate qr_code %q", label, b.QRCode))
		}
		seen[b.QRCode] = true
		if (b.Latitude == nil) != (b.Longitude == nil) {
			errs = append(errs, fmt.Errorf("%s: latitude and longitude go together", label))
		}
		if b.Capacity < 0 {
			errs = append(errs, fmt.Errorf("%s: capacity must be positive", label))
		}
	}
	return errors.Join(errs...)
}

type BinStore interface {
	BinByQRCode(ctx context.Context, code string) (*gateway.Bin, error)
	CreateBin(ctx context.Context, in gateway.BinInput) (*gateway.Bin, error)
}

// Result lists the QR codes created and skipped.
type Result struct {
	Created []string
	Skipped []string
}

// SeedBins creates every bin whose QR code is not registered yet. With
// dryRun nothing is written.
func SeedBins(ctx context.Context, store BinStore, inv *Inventory, dryRun bool) (Result, error) {
	var res Result
	for _, b := range inv.Bins {
		_, err := store.BinByQRCode(ctx, b.QRCode)
		switch {
		case err == nil:
			log.Printf("⚠️ Bin exists, skipping: %s", b.QRCode)
			res.Skipped = append(res.Skipped, b.QRCode)
			continue
		case !errors.Is(err, gateway.ErrNotFound):
			return res, fmt.Errorf("lookup bin %s: %w", b.QRCode, err)
		}

		if !dryRun {
			if _, err := store.CreateBin(ctx, b.Input()); err != nil {
				return res, fmt.Errorf("failed to create bin %s: %w", b.QRCode, err)
			}
		}
		res.Created = append(res.Created, b.QRCode)
	}

	log.Printf("✅ Seeded %d bins (%d skipped)", len(res.Created), len(res.Skipped))
	return res, nil
}
