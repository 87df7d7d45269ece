package seeds

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
)

const inventory = `
bins:
  - name: Lac 1 Entrance
    qr_code: QR-LAC1
    location: Rue du Lac Leman, Tunis
    latitude: 36.8331
    longitude: 10.2331
    capacity: 120
  - name: Campus Library
    qr_code: QR-LIB
    location: INSAT, Tunis
    status: maintenance
`

type fakeStore struct {
	existing map[string]bool
	created  []gateway.BinInput
	lookup   error
}

func (f *fakeStore) BinByQRCode(ctx context.Context, code string) (*gateway.Bin, error) {
	if f.lookup != nil {
		return nil, f.lookup
	}
	if f.existing[code] {
		return &gateway.Bin{QRCode: code}, nil
	}
	return nil, &gateway.APIError{Status: http.StatusNotFound}
}

func (f *fakeStore) CreateBin(ctx context.Context, in gateway.BinInput) (*gateway.Bin, error) {
	f.created = append(f.created, in)
	return &gateway.Bin{QRCode: in.QRCode}, nil
}

func TestParseInventory(t *testing.T) {
	inv, err := ParseInventory([]byte(inventory))
	if err != nil {
		t.Fatalf("ParseInventory: %v", err)
	}
	if len(inv.Bins) != 2 {
		t.Fatalf("expected 2 bins, got %d", len(inv.Bins))
	}

	first := inv.Bins[0].Input()
	if !first.Latitude.Valid || first.Latitude.Value != 36.8331 || first.Capacity != 120 {
		t.Errorf("unexpected first bin: %+v", first)
	}
	second := inv.Bins[1].Input()
	if second.Latitude.Valid || second.Capacity != 100 || second.Status != gateway.BinStatusMaintenance {
		t.Errorf("unexpected defaults on second bin: %+v", second)
	}
}

func TestParseInventory_Invalid(t *testing.T) {
	cases := map[string]string{
		"duplicate qr": "bins:\n  - {name: a, qr_code: Q, location: x}\n  - {name: b, qr_code: Q, location: y}\n",
		"missing name": "bins:\n  - {qr_code: Q, location: x}\n",
		"half coords":  "bins:\n  - {name: a, qr_code: Q, location: x, latitude: 1.5}\n",
		"not yaml":     "bins: [",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseInventory([]byte(raw)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestSeedBins(t *testing.T) {
	inv, err := ParseInventory([]byte(inventory))
	if err != nil {
		t.Fatalf("ParseInventory: %v", err)
	}

	store := &fakeStore{existing: map[string]bool{"QR-LIB": true}}
	res, err := SeedBins(context.Background(), store, inv, false)
	if err != nil {
		t.Fatalf("SeedBins: %v", err)
	}
	if len(res.Created) != 1 || res.Created[0] != "QR-LAC1" || len(res.Skipped) != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(store.created) != 1 {
		t.Errorf("expected one create call, got %d", len(store.created))
	}
}

func TestSeedBins_DryRun(t *testing.T) {
	inv, _ := ParseInventory([]byte(inventory))
	store := &fakeStore{}

	res, err := SeedBins(context.Background(), store, inv, true)
	if err != nil {
		t.Fatalf("SeedBins: %v", err)
	}
	if len(res.Created) != 2 || len(store.created) != 0 {
		t.Errorf("dry run should plan 2 and create none, got %+v / %d", res, len(store.created))
	}
}

func TestSeedBins_LookupFailure(t *testing.T) {
	inv, _ := ParseInventory([]byte(inventory))
	store := &fakeStore{lookup: errors.New("gateway down")}

	if _, err := SeedBins(context.Background(), store, inv, false); err == nil {
		t.Error("expected an error")
	}
}
