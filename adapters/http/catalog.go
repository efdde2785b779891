package http

import (
	"net/http"
	"strconv"
	"strings"

	"nexx-gsm/core/catalog"
	"nexx-gsm/internal/errors"
)

// Device list limits
const (
	defaultDeviceLimit = 50
	maxDeviceLimit     = 500
	maxMatchCandidates = 10
)

func (a *Adapter) store(w http.ResponseWriter, r *http.Request) (*catalog.Store, bool) {
	store, err := a.deps.Catalog.Store()
	if err != nil {
		a.writeErr(w, r, err)
		return nil, false
	}
	return store, true
}

func queryLimit(r *http.Request, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return fallback
	}
	if n > maxDeviceLimit {
		return maxDeviceLimit
	}
	return n
}

// handleListDevices filters by free text, or by brand and type
func (a *Adapter) handleListDevices(w http.ResponseWriter, r *http.Request) {
	store, ok := a.store(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit := queryLimit(r, defaultDeviceLimit)

	var devices []catalog.DeviceRecord
	switch {
	case strings.TrimSpace(q.Get("q")) != "":
		devices = store.Search(q.Get("q"), 0)
	case q.Get("brand") != "" || q.Get("type") != "":
		devices = store.ByBrand(q.Get("brand"), catalog.ParseDeviceType(q.Get("type")))
	default:
		devices = store.All()
	}
	total := len(devices)
	if len(devices) > limit {
		devices = devices[:limit]
	}
	if devices == nil {
		devices = []catalog.DeviceRecord{}
	}

	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"devices": devices,
		"count":   len(devices),
		"total":   total,
	})
}

func (a *Adapter) handlePopularDevices(w http.ResponseWriter, r *http.Request) {
	store, ok := a.store(w, r)
	if !ok {
		return
	}
	devices := store.Popular(queryLimit(r, 12))
	if devices == nil {
		devices = []catalog.DeviceRecord{}
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"devices": devices,
	})
}

// handleMatchDevice returns ranked candidates for a typed model name
func (a *Adapter) handleMatchDevice(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		a.writeErr(w, r, errors.Validation("q is required"))
		return
	}
	store, ok := a.store(w, r)
	if !ok {
		return
	}
	candidates := store.Match(query)
	if len(candidates) > maxMatchCandidates {
		candidates = candidates[:maxMatchCandidates]
	}
	if candidates == nil {
		candidates = []catalog.Candidate{}
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"query":      query,
		"candidates": candidates,
	})
}

func (a *Adapter) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	store, ok := a.store(w, r)
	if !ok {
		return
	}
	slug := r.PathValue("slug")
	device, found := store.BySlug(slug)
	if !found {
		a.writeErr(w, r, errors.NotFound("device", slug))
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"device":  device,
	})
}

func (a *Adapter) handleBrands(w http.ResponseWriter, r *http.Request) {
	store, ok := a.store(w, r)
	if !ok {
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"brands":  store.Brands(),
	})
}
