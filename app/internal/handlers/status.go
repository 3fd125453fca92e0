package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"pulse/app/internal/checker"
	"pulse/app/internal/incident"
	"pulse/app/internal/models"
)

// POST /status actions
const (
	ActionAddIncident    = "add_incident"
	ActionUpdateIncident = "update_incident"
)

// HandleGetStatus probes the target live and returns it together with the
// incident list and statistics derived from the monitoring log.
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	days := h.opts.HistoryDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		days = clampDays(n)
	}

	target := r.URL.Query().Get("url")
	override := target != "" && target != h.opts.DefaultURL
	if override {
		if !h.opts.AllowURLOverride {
			writeError(w, http.StatusBadRequest, "URL override is disabled")
			return
		}
		if err := checker.ValidateTarget(target); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if h.Probes != nil {
			ip := h.clientIP(r)
			if !h.Probes.Allow(ip) {
				h.Probes.Reject(w, ip)
				return
			}
		}
	} else {
		target = h.opts.DefaultURL
	}

	sample := h.Prober.Probe(r.Context(), target)
	if !override && h.opts.RequestDriven && r.Context().Err() == nil {
		h.recordSample(sample)
	}

	summary := h.Aggregator.Summary(days)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": models.StatusPayload{
			CurrentStatus: models.CurrentStatus{
				Status:         sample.Status,
				ResponseTimeMs: sample.LatencyMs,
				URL:            sample.URL,
			},
			Incidents:       h.Incidents.List(),
			History:         summary.History,
			OverallUptime:   summary.OverallUptime,
			AvgResponseTime: summary.AverageLatency,
			TotalChecks:     summary.TotalChecks,
			CurrentTime:     h.Aggregator.Now().Format(time.RFC3339),
		},
	})
}

func clampDays(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxHistoryDays {
		return MaxHistoryDays
	}
	return n
}

// HandlePostStatus dispatches incident mutations on the "action" field
func (h *Handler) HandlePostStatus(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	switch action := gjson.GetBytes(body, "action").String(); action {
	case ActionAddIncident:
		h.addIncident(w, r, body)
	case ActionUpdateIncident:
		h.updateIncident(w, r, body)
	default:
		writeError(w, http.StatusBadRequest, "Invalid action")
	}
}

func (h *Handler) addIncident(w http.ResponseWriter, r *http.Request, body []byte) {
	var in incident.NewIncident
	if err := json.Unmarshal(body, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid incident: "+err.Error())
		return
	}

	inc, err := h.Incidents.Add(r.Context(), in)
	if err != nil {
		writeIncidentError(w, err)
		return
	}
	log.Printf("incident %s added: %q (%s)", inc.ID, inc.Title, inc.Status)
	h.incidentChanged(inc, true)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":  true,
		"incident": inc,
	})
}

func (h *Handler) updateIncident(w http.ResponseWriter, r *http.Request, body []byte) {
	id := gjson.GetBytes(body, "id")
	if id.Type != gjson.String || id.String() == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	patch, err := extractPatch(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	inc, err := h.Incidents.Update(r.Context(), id.String(), patch)
	if err != nil {
		writeIncidentError(w, err)
		return
	}
	log.Printf("incident %s updated (%s)", inc.ID, inc.Status)
	h.incidentChanged(inc, false)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"incident": inc,
	})
}

// extractPatch reads the fields to change from "patch", or from a legacy
// "updates" object. A bare "updates" array replaces the update list.
func extractPatch(body []byte) (incident.Patch, error) {
	var p incident.Patch
	raw := gjson.GetBytes(body, "patch")
	if !raw.Exists() {
		legacy := gjson.GetBytes(body, "updates")
		switch {
		case legacy.IsObject():
			raw = legacy
		case legacy.IsArray():
			var list []models.IncidentUpdate
			if err := json.Unmarshal([]byte(legacy.Raw), &list); err != nil {
				return p, errors.New("invalid updates: " + err.Error())
			}
			p.Updates = &list
			return p, nil
		default:
			return p, errors.New("patch is required")
		}
	}
	if !raw.IsObject() {
		return p, errors.New("patch must be an object")
	}
	if err := json.Unmarshal([]byte(raw.Raw), &p); err != nil {
		return p, errors.New("invalid patch: " + err.Error())
	}
	return p, nil
}

func writeIncidentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, incident.ErrNotFound):
		writeError(w, http.StatusNotFound, "Incident not found")
	case errors.Is(err, incident.ErrTitleRequired), errors.Is(err, incident.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("incident write failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to save incident")
	}
}
