package api

import (
	"net/http"
	"time"
)

// recentDiscoveryWindow marks an advertisement as recent in the summary.
const recentDiscoveryWindow = 5 * time.Minute

// DiscoverySummary provides aggregate statistics about seen advertisements.
type DiscoverySummary struct {
	Total          int `json:"total"`
	Paired         int `json:"paired"`
	ActiveLast5Min int `json:"active_last_5min"`
}

// discoveryView is one advertisement plus whether it belongs to a
// configured device.
type discoveryView struct {
	Address     string    `json:"address"`
	Name        string    `json:"name,omitempty"`
	RSSI        int       `json:"rssi"`
	ServiceUUID string    `json:"service_uuid"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	SeenCount   int       `json:"seen_count"`
	Paired      bool      `json:"paired"`
}

// handleListDiscoveries returns the Tuya BLE advertisements recorded by
// the scanner, most recent first.
func (s *Server) handleListDiscoveries(w http.ResponseWriter, r *http.Request) {
	if s.discoveries == nil {
		writeUnavailable(w, "discovery log not available")
		return
	}

	found, err := s.discoveries.ListDiscoveries(r.Context())
	if err != nil {
		s.logger.Error("discovery query failed", "error", err)
		writeInternalError(w, "failed to query discoveries")
		return
	}

	paired := make(map[string]bool)
	for _, d := range s.bridge.Devices() {
		paired[d.Address] = true
	}

	cutoff := time.Now().Add(-recentDiscoveryWindow)
	views := make([]discoveryView, 0, len(found))
	summary := DiscoverySummary{Total: len(found)}
	for _, d := range found {
		v := discoveryView{
			Address:     d.Address,
			Name:        d.Name,
			RSSI:        d.RSSI,
			ServiceUUID: d.ServiceUUID,
			FirstSeen:   d.FirstSeen,
			LastSeen:    d.LastSeen,
			SeenCount:   d.SeenCount,
			Paired:      paired[d.Address],
		}
		if v.Paired {
			summary.Paired++
		}
		if d.LastSeen.After(cutoff) {
			summary.ActiveLast5Min++
		}
		views = append(views, v)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"discoveries": views,
		"summary":     summary,
	})
}
