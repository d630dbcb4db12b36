package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tripcraft/tripcraft/internal/domain"
)

func newTestRouter(t *testing.T) (*chi.Mux, *Service) {
	t.Helper()
	svc, repo, _ := newTestService(t)
	seedItinerary(t, repo, "itin-1")

	r := chi.NewRouter()
	NewHandler(svc, 100, 100).RegisterRoutes(r)
	return r, svc
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestMessageEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := postJSON(t, r, "/api/chat/message", map[string]string{
		"itinerary_id": "itin-1",
		"message":      "Remove the Notre Dame from day 1",
		"user_id":      "user-1",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result MessageResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(result.Suggestions) != 1 || result.Suggestions[0].Intent != "remove_activity" {
		t.Errorf("suggestions = %+v", result.Suggestions)
	}
}

func TestMessageEndpointValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing message", map[string]string{"itinerary_id": "itin-1"}},
		{"missing itinerary", map[string]string{"message": "add the Louvre"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, r, "/api/chat/message", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestMessageEndpointUnknownItinerary(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := postJSON(t, r, "/api/chat/message", map[string]string{
		"itinerary_id": "ghost",
		"message":      "add the Louvre",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestMessageEndpointRateLimited(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seedItinerary(t, repo, "itin-1")

	r := chi.NewRouter()
	NewHandler(svc, 0.001, 1).RegisterRoutes(r)

	body := map[string]string{
		"itinerary_id": "itin-1",
		"message":      "add the Louvre",
		"user_id":      "user-1",
	}
	if rec := postJSON(t, r, "/api/chat/message", body); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	if rec := postJSON(t, r, "/api/chat/message", body); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec.Code)
	}
}

func TestApplyEditEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	amount := 2500.0
	rec := postJSON(t, r, "/api/chat/apply-edit", applyEditRequest{
		ItineraryID: "itin-1",
		EditCommand: domain.EditCommand{
			Action: domain.ActionUpdate,
			Target: domain.TargetBudget,
			Amount: &amount,
		},
		UserID: "user-1",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp applyEditResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.ChangeID == "" {
		t.Errorf("response = %+v", resp)
	}
	if resp.UpdatedItinerary == nil || resp.UpdatedItinerary.TotalBudget == nil || *resp.UpdatedItinerary.TotalBudget != 2500 {
		t.Errorf("updated itinerary = %+v", resp.UpdatedItinerary)
	}
}

func TestUndoEndpoint(t *testing.T) {
	r, svc := newTestRouter(t)

	amount := 99.0
	applied, err := svc.ApplyEdit(context.Background(), "itin-1", domain.EditCommand{
		Action: domain.ActionUpdate,
		Target: domain.TargetBudget,
		Amount: &amount,
	}, "user-1")
	if err != nil {
		t.Fatalf("ApplyEdit: %v", err)
	}

	rec := postJSON(t, r, "/api/chat/undo", map[string]string{
		"change_id":    applied.ChangeID,
		"itinerary_id": "itin-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Second undo of the same change conflicts.
	rec = postJSON(t, r, "/api/chat/undo", map[string]string{
		"change_id":    applied.ChangeID,
		"itinerary_id": "itin-1",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("second undo status = %d, want 409", rec.Code)
	}
}

func TestUndoEndpointUnknownChange(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := postJSON(t, r, "/api/chat/undo", map[string]string{
		"change_id":    "change_ghost",
		"itinerary_id": "itin-1",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	r, svc := newTestRouter(t)

	amount := 500.0
	if _, err := svc.ApplyEdit(context.Background(), "itin-1", domain.EditCommand{
		Action: domain.ActionUpdate,
		Target: domain.TargetBudget,
		Amount: &amount,
	}, "user-1"); err != nil {
		t.Fatalf("ApplyEdit: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/chat/history/itin-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Edits []*domain.EditRecord `json:"edits"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Edits) != 1 || resp.Edits[0].Intent != "update" {
		t.Errorf("edits = %+v", resp.Edits)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/message", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
