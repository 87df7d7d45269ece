package bins

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
	"github.com/SmartBin/SmartBin-Backend/internal/geocoding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockGateway struct {
	bins     []gateway.Bin
	err      error
	created  *gateway.BinInput
	fill     int
	statsErr error
}

func (m *mockGateway) ListBins(ctx context.Context, status string) ([]gateway.Bin, error) {
	if m.err != nil {
		return nil, m.err
	}
	if status == "" {
		return m.bins, nil
	}
	var out []gateway.Bin
	for _, b := range m.bins {
		if b.Status == status {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockGateway) GetBin(ctx context.Context, id string) (*gateway.Bin, error) {
	for _, b := range m.bins {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, &gateway.APIError{Status: http.StatusNotFound, Message: "Bin not found"}
}

func (m *mockGateway) BinByQRCode(ctx context.Context, code string) (*gateway.Bin, error) {
	for _, b := range m.bins {
		if b.QRCode == code {
			return &b, nil
		}
	}
	return nil, &gateway.APIError{Status: http.StatusNotFound}
}

func (m *mockGateway) CreateBin(ctx context.Context, in gateway.BinInput) (*gateway.Bin, error) {
	m.created = &in
	return &gateway.Bin{ID: "new", Name: in.Name, QRCode: in.QRCode, Status: in.Status,
		Latitude: in.Latitude, Longitude: in.Longitude}, nil
}

func (m *mockGateway) UpdateBin(ctx context.Context, id string, in gateway.BinInput) (*gateway.Bin, error) {
	return &gateway.Bin{ID: id, Name: in.Name, Status: in.Status}, nil
}

func (m *mockGateway) DeleteBin(ctx context.Context, id string) error { return m.err }

func (m *mockGateway) UpdateFillLevel(ctx context.Context, id string, level int) (*gateway.Bin, error) {
	m.fill = level
	return &gateway.Bin{ID: id, FillLevel: level, Status: gateway.BinStatusActive}, nil
}

func (m *mockGateway) TodayStats(ctx context.Context) (*gateway.DetectionStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return &gateway.DetectionStats{TotalDetections: 7}, nil
}

type mockGeocoder struct{ calls int }

func (g *mockGeocoder) Geocode(ctx context.Context, address string) (*geocoding.Result, error) {
	g.calls++
	return &geocoding.Result{Lat: 36.8065, Lng: 10.1815}, nil
}

func passthrough(next http.Handler) http.Handler { return next }

func fixtureBins() []gateway.Bin {
	return []gateway.Bin{
		{ID: "far", QRCode: "QR-FAR", Status: gateway.BinStatusActive, FillLevel: 10,
			Latitude: gateway.NewCoordinate(36.90), Longitude: gateway.NewCoordinate(10.20)},
		{ID: "near", QRCode: "QR-NEAR", Status: gateway.BinStatusActive, FillLevel: 40,
			Latitude: gateway.NewCoordinate(36.81), Longitude: gateway.NewCoordinate(10.18)},
		{ID: "nowhere", QRCode: "QR-NONE", Status: gateway.BinStatusActive, FillLevel: 20},
		{ID: "almost", QRCode: "QR-85", Status: gateway.BinStatusActive, FillLevel: 85},
		{ID: "broken", QRCode: "QR-MAINT", Status: gateway.BinStatusMaintenance, FillLevel: 5, IsOpen: true},
	}
}

func TestCanOpen(t *testing.T) {
	cases := []struct {
		name   string
		bin    gateway.Bin
		allow  bool
		reason string
	}{
		{"active and empty", gateway.Bin{Status: gateway.BinStatusActive, FillLevel: 0}, true, ""},
		{"just under the limit", gateway.Bin{Status: gateway.BinStatusActive, FillLevel: 89}, true, ""},
		{"at the limit", gateway.Bin{Status: gateway.BinStatusActive, FillLevel: 90}, false, "fill_level"},
		{"full status", gateway.Bin{Status: gateway.BinStatusFull, FillLevel: 10}, false, "full"},
		{"maintenance", gateway.Bin{Status: gateway.BinStatusMaintenance}, false, "maintenance"},
		{"inactive beats fill level", gateway.Bin{Status: gateway.BinStatusInactive, FillLevel: 95}, false, "inactive"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := CanOpen(tc.bin)
			assert.Equal(t, tc.allow, v.Allowed)
			assert.Equal(t, tc.reason, v.Reason)
			if !tc.allow {
				assert.NotEmpty(t, v.Message)
			}
		})
	}
}

func TestAvailable(t *testing.T) {
	got := Available(fixtureBins())

	ids := make([]string, 0, len(got))
	for _, b := range got {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []string{"far", "near", "nowhere"}, ids)
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Active", StatusLabel("active"))
	assert.Equal(t, "Under Maintenance", StatusLabel("maintenance"))
	assert.Equal(t, "Full", StatusLabel("full"))
}

func TestDistanceMeters(t *testing.T) {
	assert.Zero(t, DistanceMeters(36.8, 10.1, 36.8, 10.1))
	// one degree of latitude is about 111 km
	assert.InDelta(t, 111195, DistanceMeters(0, 0, 1, 0), 100)
}

func TestSortByDistance(t *testing.T) {
	views := Views(fixtureBins()[:3])

	SortByDistance(views, 36.8065, 10.1815)

	require.Len(t, views, 3)
	assert.Equal(t, "near", views[0].ID)
	assert.Equal(t, "far", views[1].ID)
	assert.Equal(t, "nowhere", views[2].ID)
	assert.Nil(t, views[2].Distance)
	require.NotNil(t, views[0].Distance)
	assert.Less(t, *views[0].Distance, *views[1].Distance)
}

func TestSummarize(t *testing.T) {
	s := Summarize(fixtureBins())

	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 4, s.ByStatus[gateway.BinStatusActive])
	assert.Equal(t, 1, s.Open)
	assert.Equal(t, 3, s.Available)
	assert.Equal(t, 32.0, s.AverageFillLevel)
}

func newTestServer(gw *mockGateway, geo Geocoder) http.Handler {
	return SetupRoutes(gw, geo, passthrough, passthrough)
}

func TestListBins_AvailableNearestFirst(t *testing.T) {
	h := newTestServer(&mockGateway{bins: fixtureBins()}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?available=true&lat=36.8065&lng=10.1815", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got []View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 3)
	assert.Equal(t, "near", got[0].ID)
	assert.True(t, got[0].CanOpen.Allowed)
	assert.Equal(t, "Active", got[0].StatusLabel)
}

func TestListBins_InvalidStatus(t *testing.T) {
	h := newTestServer(&mockGateway{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?status=emptyish", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListBins_UpstreamDown(t *testing.T) {
	h := newTestServer(&mockGateway{err: context.DeadlineExceeded}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGetBin(t *testing.T) {
	h := newTestServer(&mockGateway{bins: fixtureBins()}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/broken", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.CanOpen.Allowed)
	assert.Equal(t, "maintenance", got.CanOpen.Reason)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetBinByQRCode(t *testing.T) {
	h := newTestServer(&mockGateway{bins: fixtureBins()}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/qr/QR-NEAR", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"near"`)
}

func TestCreateBin_GeocodesMissingCoordinates(t *testing.T) {
	gw := &mockGateway{}
	geo := &mockGeocoder{}
	h := newTestServer(gw, geo)

	body := `{"name":"Lac 2","qr_code":"QR-LAC2","location":"Rue du Lac Windermere, Tunis"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body)))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, gw.created)
	assert.Equal(t, 1, geo.calls)
	assert.True(t, gw.created.Latitude.Valid)
	assert.Equal(t, gateway.BinStatusActive, gw.created.Status)
	assert.Equal(t, 100, gw.created.Capacity)
}

func TestCreateBin_KeepsGivenCoordinates(t *testing.T) {
	gw := &mockGateway{}
	geo := &mockGeocoder{}
	h := newTestServer(gw, geo)

	body := `{"name":"Lac 2","qr_code":"QR-LAC2","location":"Tunis","latitude":"36.800000","longitude":10.2}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Zero(t, geo.calls)
	assert.Equal(t, 36.8, gw.created.Latitude.Value)
}

func TestCreateBin_Validation(t *testing.T) {
	cases := map[string]string{
		"missing name":  `{"qr_code":"Q","location":"L"}`,
		"bad status":    `{"name":"N","qr_code":"Q","location":"L","status":"broken"}`,
		"bad latitude":  `{"name":"N","qr_code":"Q","location":"L","latitude":120,"longitude":0}`,
		"negative size": `{"name":"N","qr_code":"Q","location":"L","capacity":-5}`,
		"not even json": `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			h := newTestServer(&mockGateway{}, nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUpdateFillLevel(t *testing.T) {
	gw := &mockGateway{}
	h := newTestServer(gw, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/b1/fill-level", bytes.NewBufferString(`{"fill_level":95}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 95, gw.fill)
	assert.Contains(t, rec.Body.String(), `"reason":"fill_level"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/b1/fill-level", bytes.NewBufferString(`{"fill_level":101}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteBin(t *testing.T) {
	h := newTestServer(&mockGateway{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/b1", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestGetStats_WithoutDetections(t *testing.T) {
	h := newTestServer(&mockGateway{bins: fixtureBins(), statsErr: context.Canceled}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 5, got.Total)
	assert.Nil(t, got.Detections)
}
