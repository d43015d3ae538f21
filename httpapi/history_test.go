package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestParseHistoryResponse_Success(t *testing.T) {
	entries := []historyEntry{
		{State: "on", LastChanged: "2026-08-01T10:00:00Z"},
		{State: "off", LastChanged: "2026-08-01T11:00:00Z"},
	}
	body, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}

	got := parseHistoryResponse(http.StatusOK, "application/json; charset=utf-8", body)
	if got.Error != "" {
		t.Fatalf("unexpected error: %q", got.Error)
	}
	if len(got.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(got.Points))
	}
	if got.Points[0].State != "on" || got.Points[0].ChangedAt != "2026-08-01T10:00:00Z" {
		t.Fatalf("unexpected first point: %+v", got.Points[0])
	}
	if got.Points[1].State != "off" {
		t.Fatalf("unexpected second point: %+v", got.Points[1])
	}
}

func TestParseHistoryResponse_NonOKStatus(t *testing.T) {
	got := parseHistoryResponse(http.StatusBadGateway, "application/json", []byte(`[]`))
	if got.Error == "" {
		t.Fatal("expected an error for a non-200 upstream response")
	}
	if len(got.Points) != 0 {
		t.Fatalf("expected no points on failure, got %d", len(got.Points))
	}
}

func TestParseHistoryResponse_WrongContentType(t *testing.T) {
	got := parseHistoryResponse(http.StatusOK, "text/plain", []byte("not json"))
	if got.Error == "" {
		t.Fatal("expected an error for a non-JSON content type")
	}
	if got.Points == nil || len(got.Points) != 0 {
		t.Fatalf("expected an empty (non-nil) points slice, got %+v", got.Points)
	}
}

func TestParseHistoryResponse_MalformedBody(t *testing.T) {
	got := parseHistoryResponse(http.StatusOK, "application/json", []byte(`{not valid json`))
	if got.Error == "" {
		t.Fatal("expected an error for a malformed body")
	}
	if len(got.Points) != 0 {
		t.Fatalf("expected no points, got %d", len(got.Points))
	}
}

func TestParseHistoryResponse_EmptyArray(t *testing.T) {
	got := parseHistoryResponse(http.StatusOK, "application/json", []byte(`[]`))
	if got.Error != "" {
		t.Fatalf("unexpected error: %q", got.Error)
	}
	if len(got.Points) != 0 {
		t.Fatalf("expected zero points, got %d", len(got.Points))
	}
}

// TestParseHistoryResponse_Idempotent checks §8's round-trip law: parsing
// the same status, content type and body twice yields the same points,
// since the function is a pure reshape with no hidden state.
func TestParseHistoryResponse_Idempotent(t *testing.T) {
	entries := []historyEntry{{State: "home", LastChanged: "2026-08-01T09:30:00Z"}}
	body, _ := json.Marshal(entries)

	first := parseHistoryResponse(http.StatusOK, "application/json", body)
	second := parseHistoryResponse(http.StatusOK, "application/json", body)

	if len(first.Points) != len(second.Points) {
		t.Fatalf("expected stable output across calls, got %+v and %+v", first, second)
	}
	if first.Points[0] != second.Points[0] {
		t.Fatalf("expected identical points, got %+v and %+v", first.Points[0], second.Points[0])
	}
}
