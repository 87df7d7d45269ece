package bins

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// BlockedFillLevel and above, a bin refuses to open.
	BlockedFillLevel = 90
	// AvailableFillLevel and above, a bin is hidden from the "available" lists.
	AvailableFillLevel = 80

	earthRadiusMeters = 6371000.0
)

// Verdict is the outcome of the open guard.
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// CanOpen decides whether a user may open bin. Blocked statuses are checked
// before the fill level so the message names the status.
func CanOpen(bin gateway.Bin) Verdict {
	switch bin.Status {
	case gateway.BinStatusFull:
		return Verdict{Reason: "full", Message: "This bin is full. Please use another bin nearby."}
	case gateway.BinStatusMaintenance:
		return Verdict{Reason: "maintenance", Message: "This bin is under maintenance and cannot be opened right now."}
	case gateway.BinStatusInactive:
		return Verdict{Reason: "inactive", Message: "This bin is inactive and cannot be opened."}
	}
	if bin.FillLevel >= BlockedFillLevel {
		return Verdict{
			Reason:  "fill_level",
			Message: fmt.Sprintf("This bin is %d%% full and cannot accept more waste.", bin.FillLevel),
		}
	}
	return Verdict{Allowed: true}
}

// Available keeps active bins with room left, as shown on the dashboard and map.
func Available(all []gateway.Bin) []gateway.Bin {
	out := make([]gateway.Bin, 0, len(all))
	for _, b := range all {
		if b.Status == gateway.BinStatusActive && b.FillLevel < AvailableFillLevel {
			out = append(out, b)
		}
	}
	return out
}

// StatusLabel renders a status for display.
func StatusLabel(status string) string {
	if status == gateway.BinStatusMaintenance {
		return "Under Maintenance"
	}
	return cases.Title(language.English).String(strings.ReplaceAll(status, "_", " "))
}

// DistanceMeters is the great-circle distance between two points.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}

// View is a bin decorated for the web client.
type View struct {
	gateway.Bin
	StatusLabel string   `json:"status_label"`
	Distance    *float64 `json:"distance,omitempty"` // meters, rounded
	CanOpen     Verdict  `json:"can_open"`
}

// NewView decorates a single bin.
func NewView(b gateway.Bin) View {
	return View{
		Bin:         b,
		StatusLabel: StatusLabel(b.Status),
		CanOpen:     CanOpen(b),
	}
}

// Views decorates bins, in order.
func Views(all []gateway.Bin) []View {
	out := make([]View, 0, len(all))
	for _, b := range all {
		out = append(out, NewView(b))
	}
	return out
}

// SortByDistance fills Distance from (lat, lng) and orders nearest first.
// Bins without coordinates go last.
func SortByDistance(views []View, lat, lng float64) {
	for i := range views {
		b := views[i].Bin
		if !b.Latitude.Valid || !b.Longitude.Valid {
			views[i].Distance = nil
			continue
		}
		d := math.Round(DistanceMeters(lat, lng, b.Latitude.Value, b.Longitude.Value))
		views[i].Distance = &d
	}
	sort.SliceStable(views, func(i, j int) bool {
		di, dj := views[i].Distance, views[j].Distance
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return *di < *dj
		}
	})
}

// Stats summarizes the inventory for the admin dashboard.
type Stats struct {
	Total            int                     `json:"total"`
	ByStatus         map[string]int          `json:"by_status"`
	Open             int                     `json:"open"`
	AverageFillLevel float64                 `json:"average_fill_level"`
	Available        int                     `json:"available"`
	Detections       *gateway.DetectionStats `json:"detections_today,omitempty"`
}

// Summarize computes inventory counters.
func Summarize(all []gateway.Bin) Stats {
	s := Stats{Total: len(all), ByStatus: map[string]int{}}
	fill := 0
	for _, b := range all {
		s.ByStatus[b.Status]++
		fill += b.FillLevel
		if b.IsOpen {
			s.Open++
		}
	}
	if len(all) > 0 {
		s.AverageFillLevel = math.Round(float64(fill)/float64(len(all))*10) / 10
	}
	s.Available = len(Available(all))
	return s
}
