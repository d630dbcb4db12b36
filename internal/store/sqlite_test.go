package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/tripcraft/tripcraft/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return repo
}

func testItineraryRecord(id string) *domain.ItineraryRecord {
	budget := 1000.0
	now := time.Unix(time.Now().Unix(), 0)
	return &domain.ItineraryRecord{
		ID:          id,
		UserID:      "user-1",
		Destination: "Paris",
		Interests:   "art, food",
		Dates:       "2026-10-01 to 2026-10-05",
		Content: &domain.Itinerary{
			Destination: "Paris",
			TotalBudget: &budget,
			Days: map[string]*domain.DayPlan{
				"day_1": {Activities: []domain.Activity{
					{ID: "act_1", Name: "Eiffel Tower", TimeSlot: "morning", Duration: "2 hours", Cost: 25},
				}},
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestItineraryRoundTrip(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	want := testItineraryRecord("itin-1")
	if err := repo.CreateItinerary(ctx, want); err != nil {
		t.Fatalf("CreateItinerary: %v", err)
	}

	got, err := repo.GetItinerary(ctx, "itin-1")
	if err != nil {
		t.Fatalf("GetItinerary: %v", err)
	}
	if got == nil {
		t.Fatal("GetItinerary returned nil for existing row")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestGetItineraryMissingReturnsNilNil(t *testing.T) {
	repo := newTestStore(t)
	got, err := repo.GetItinerary(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("GetItinerary: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestPutItineraryUpdatesContent(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	rec := testItineraryRecord("itin-1")
	if err := repo.CreateItinerary(ctx, rec); err != nil {
		t.Fatalf("CreateItinerary: %v", err)
	}

	budget := 2500.0
	rec.Content.TotalBudget = &budget
	rec.UpdatedAt = rec.UpdatedAt.Add(time.Minute)
	if err := repo.PutItinerary(ctx, rec); err != nil {
		t.Fatalf("PutItinerary: %v", err)
	}

	got, err := repo.GetItinerary(ctx, "itin-1")
	if err != nil {
		t.Fatalf("GetItinerary: %v", err)
	}
	if got.Content.TotalBudget == nil || *got.Content.TotalBudget != 2500 {
		t.Errorf("TotalBudget = %v, want 2500", got.Content.TotalBudget)
	}
}

func TestPutItineraryMissingRow(t *testing.T) {
	repo := newTestStore(t)
	rec := testItineraryRecord("ghost")
	if err := repo.PutItinerary(context.Background(), rec); err == nil {
		t.Error("PutItinerary on a missing row should fail")
	}
}

func testEditRecord(changeID, itineraryID string) *domain.EditRecord {
	amount := 2500.0
	before := domain.NewItinerary()
	after := before.Clone()
	after.TotalBudget = &amount
	return &domain.EditRecord{
		ChangeID:    changeID,
		ItineraryID: itineraryID,
		UserID:      "user-1",
		Intent:      "update_cost",
		Command: domain.EditCommand{
			Action: domain.ActionUpdate,
			Target: domain.TargetBudget,
			Amount: &amount,
		},
		BeforeSnapshot: before,
		AfterSnapshot:  after,
		Confidence:     0.9,
		Status:         domain.EditStatusApplied,
		CreatedAt:      time.Unix(time.Now().Unix(), 0),
	}
}

func TestEditRecordRoundTrip(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	want := testEditRecord("change_1", "itin-1")
	if err := repo.PutEditRecord(ctx, want); err != nil {
		t.Fatalf("PutEditRecord: %v", err)
	}

	got, err := repo.GetEditRecord(ctx, "change_1")
	if err != nil {
		t.Fatalf("GetEditRecord: %v", err)
	}
	if got == nil {
		t.Fatal("GetEditRecord returned nil for existing row")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestGetEditRecordMissingReturnsNilNil(t *testing.T) {
	repo := newTestStore(t)
	got, err := repo.GetEditRecord(context.Background(), "change_missing")
	if err != nil {
		t.Fatalf("GetEditRecord: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestUpdateEditStatusConditional(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if err := repo.PutEditRecord(ctx, testEditRecord("change_1", "itin-1")); err != nil {
		t.Fatalf("PutEditRecord: %v", err)
	}

	revertedAt := time.Unix(time.Now().Unix(), 0)
	if err := repo.UpdateEditStatus(ctx, "change_1", domain.EditStatusReverted, revertedAt); err != nil {
		t.Fatalf("first UpdateEditStatus: %v", err)
	}

	got, err := repo.GetEditRecord(ctx, "change_1")
	if err != nil {
		t.Fatalf("GetEditRecord: %v", err)
	}
	if got.Status != domain.EditStatusReverted {
		t.Errorf("Status = %s, want reverted", got.Status)
	}
	if got.RevertedAt == nil || !got.RevertedAt.Equal(revertedAt) {
		t.Errorf("RevertedAt = %v, want %v", got.RevertedAt, revertedAt)
	}

	// The same transition again must conflict, not silently succeed.
	err = repo.UpdateEditStatus(ctx, "change_1", domain.EditStatusReverted, revertedAt)
	if !errors.Is(err, ErrStatusConflict) {
		t.Errorf("second UpdateEditStatus err = %v, want ErrStatusConflict", err)
	}

	if err := repo.UpdateEditStatus(ctx, "change_missing", domain.EditStatusReverted, revertedAt); !errors.Is(err, ErrStatusConflict) {
		t.Errorf("unknown change err = %v, want ErrStatusConflict", err)
	}
}

func TestListEditRecordsNewestFirst(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	base := time.Unix(time.Now().Unix(), 0)
	for i, id := range []string{"change_a", "change_b", "change_c"} {
		rec := testEditRecord(id, "itin-1")
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.PutEditRecord(ctx, rec); err != nil {
			t.Fatalf("PutEditRecord(%s): %v", id, err)
		}
	}
	other := testEditRecord("change_other", "itin-2")
	if err := repo.PutEditRecord(ctx, other); err != nil {
		t.Fatalf("PutEditRecord(other): %v", err)
	}

	records, err := repo.ListEditRecords(ctx, "itin-1", 2)
	if err != nil {
		t.Fatalf("ListEditRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len = %d, want 2", len(records))
	}
	if records[0].ChangeID != "change_c" || records[1].ChangeID != "change_b" {
		t.Errorf("order = %s, %s; want change_c, change_b", records[0].ChangeID, records[1].ChangeID)
	}
}

func TestChatSessionRoundTripAndLatest(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	base := time.Unix(time.Now().Unix(), 0)
	older := &domain.ChatSession{
		ID:          "sess-1",
		ItineraryID: "itin-1",
		UserID:      "user-1",
		Messages: []domain.ChatMessage{
			{Role: "user", Content: "add the Louvre", Timestamp: base},
		},
		LastMessageAt: base,
		CreatedAt:     base,
	}
	newer := &domain.ChatSession{
		ID:            "sess-2",
		ItineraryID:   "itin-1",
		UserID:        "user-1",
		Messages:      []domain.ChatMessage{},
		LastMessageAt: base.Add(time.Hour),
		CreatedAt:     base.Add(time.Hour),
	}

	if err := repo.PutChatSession(ctx, older); err != nil {
		t.Fatalf("PutChatSession(older): %v", err)
	}
	if err := repo.PutChatSession(ctx, newer); err != nil {
		t.Fatalf("PutChatSession(newer): %v", err)
	}

	got, err := repo.LatestChatSession(ctx, "itin-1")
	if err != nil {
		t.Fatalf("LatestChatSession: %v", err)
	}
	if got == nil || got.ID != "sess-2" {
		t.Fatalf("latest session = %+v, want sess-2", got)
	}

	// Upsert on the same id replaces the transcript.
	newer.Messages = append(newer.Messages, domain.ChatMessage{Role: "user", Content: "yes", Timestamp: base.Add(2 * time.Hour)})
	newer.LastMessageAt = base.Add(2 * time.Hour)
	if err := repo.PutChatSession(ctx, newer); err != nil {
		t.Fatalf("PutChatSession(upsert): %v", err)
	}

	got, err = repo.LatestChatSession(ctx, "itin-1")
	if err != nil {
		t.Fatalf("LatestChatSession: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "yes" {
		t.Errorf("messages after upsert = %+v", got.Messages)
	}
}

func TestLatestChatSessionMissingReturnsNilNil(t *testing.T) {
	repo := newTestStore(t)
	got, err := repo.LatestChatSession(context.Background(), "itin-none")
	if err != nil {
		t.Fatalf("LatestChatSession: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestCleanupStaleSessions(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	now := time.Unix(time.Now().Unix(), 0)
	stale := &domain.ChatSession{
		ID: "sess-stale", ItineraryID: "itin-1",
		Messages:      []domain.ChatMessage{},
		LastMessageAt: now.Add(-2 * time.Hour),
		CreatedAt:     now.Add(-2 * time.Hour),
	}
	fresh := &domain.ChatSession{
		ID: "sess-fresh", ItineraryID: "itin-1",
		Messages:      []domain.ChatMessage{},
		LastMessageAt: now,
		CreatedAt:     now,
	}
	if err := repo.PutChatSession(ctx, stale); err != nil {
		t.Fatalf("PutChatSession(stale): %v", err)
	}
	if err := repo.PutChatSession(ctx, fresh); err != nil {
		t.Fatalf("PutChatSession(fresh): %v", err)
	}

	deleted, err := repo.CleanupStaleSessions(ctx, time.Hour)
	if err != nil {
		t.Fatalf("CleanupStaleSessions: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	got, err := repo.LatestChatSession(ctx, "itin-1")
	if err != nil {
		t.Fatalf("LatestChatSession: %v", err)
	}
	if got == nil || got.ID != "sess-fresh" {
		t.Errorf("surviving session = %+v, want sess-fresh", got)
	}
}
