package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
)

// HistoryPoint is one reshaped entry in a history proxy response.
type HistoryPoint struct {
	State     string `json:"state"`
	ChangedAt string `json:"changedAt"`
}

// HistoryResult is parseHistoryResponse's pure output, per SPEC_FULL.md
// §12: a 200+application/json upstream response decodes and reshapes to
// {points}; anything else normalizes to {points: [], error} so callers
// never special-case transport failures.
type HistoryResult struct {
	Points []HistoryPoint `json:"points"`
	Error  string         `json:"error,omitempty"`
}

type historyEntry struct {
	State       string         `json:"state"`
	LastChanged string         `json:"last_changed"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// parseHistoryResponse is a pure, idempotent reshape of one history proxy
// response — it performs no I/O and always returns a HistoryResult, never
// an error, matching §8's round-trip law.
func parseHistoryResponse(status int, contentType string, body []byte) HistoryResult {
	if status != http.StatusOK || !strings.HasPrefix(contentType, "application/json") {
		return HistoryResult{Points: []HistoryPoint{}, Error: "history request failed with status " + strconv.Itoa(status)}
	}

	var entries []historyEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return HistoryResult{Points: []HistoryPoint{}, Error: "malformed history response: " + err.Error()}
	}

	points := make([]HistoryPoint, 0, len(entries))
	for _, e := range entries {
		points = append(points, HistoryPoint{State: e.State, ChangedAt: e.LastChanged})
	}
	return HistoryResult{Points: points}
}

// handleHistory is GET /api/history?entityId=&hours= (§6): a proxied
// state-history fetch, grounded on the same resty client host.LiveHost
// uses for live-mode calls.
func (s *Server) handleHistory(c *gin.Context) {
	entityID := c.Query("entityId")
	hours := c.DefaultQuery("hours", "24")
	if entityID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entityId is required"})
		return
	}
	if s.cfg == nil || s.cfg.HAURL == "" {
		c.JSON(http.StatusOK, HistoryResult{Points: []HistoryPoint{}, Error: "no home assistant endpoint configured"})
		return
	}

	h, err := strconv.Atoi(hours)
	if err != nil || h <= 0 {
		h = 24
	}
	start := time.Now().Add(-time.Duration(h) * time.Hour).UTC().Format(time.RFC3339)

	client := resty.New().SetBaseURL(strings.TrimRight(s.cfg.HAURL, "/")).SetAuthToken(s.cfg.HAToken).SetTimeout(s.cfg.HATimeout)
	resp, err := client.R().
		SetContext(c.Request.Context()).
		SetQueryParam("filter_entity_id", entityID).
		Get("/api/history/period/" + start)

	if err != nil {
		c.JSON(http.StatusOK, HistoryResult{Points: []HistoryPoint{}, Error: err.Error()})
		return
	}

	var entries [][]historyEntry // HA returns one array per entity
	status := resp.StatusCode()
	ct := resp.Header().Get("Content-Type")
	if status == http.StatusOK && strings.HasPrefix(ct, "application/json") {
		if err := json.Unmarshal(resp.Body(), &entries); err == nil && len(entries) > 0 {
			body, _ := json.Marshal(entries[0])
			c.JSON(http.StatusOK, parseHistoryResponse(status, ct, body))
			return
		}
	}
	c.JSON(http.StatusOK, parseHistoryResponse(status, ct, resp.Body()))
}
