package gradebook_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rtdacademy/assessments/internal/gradebook"
)

type fakeCatalog map[string]gradebook.Metadata

func (c fakeCatalog) GradebookMetadata(courseID, assessmentID string) (gradebook.Metadata, error) {
	md, ok := c[courseID+"/"+assessmentID]
	if !ok {
		return gradebook.Metadata{}, fmt.Errorf("assessment %s/%s not in catalog", courseID, assessmentID)
	}
	return md, nil
}

type fakeAGS struct {
	listed      []gradebook.LineItem
	createdReq  *gradebook.CreateLineItemReq
	createdResp *gradebook.LineItem
	postCalls   int
	lastScore   gradebook.Score
	postErr     error
}

func (f *fakeAGS) ListLineItems(_ context.Context, _ string, _ map[string]string) ([]gradebook.LineItem, error) {
	return f.listed, nil
}
func (f *fakeAGS) CreateLineItem(_ context.Context, _ string, req gradebook.CreateLineItemReq) (gradebook.LineItem, error) {
	f.createdReq = &req
	li := gradebook.LineItem{
		ID:             "https://lms.example/lineitems/123",
		Label:          req.Label,
		ScoreMaximum:   req.ScoreMaximum,
		ResourceID:     req.ResourceID,
		ResourceLinkID: req.ResourceLinkID,
	}
	f.createdResp = &li
	return li, nil
}
func (f *fakeAGS) PostScore(_ context.Context, _ string, s gradebook.Score) error {
	f.postCalls++
	f.lastScore = s
	return f.postErr
}

var catalog = fakeCatalog{
	"2/q1": {Title: "Lesson 1 Quiz", Unit: "Unit 1", Weight: 0.05},
}

func update(score float64) gradebook.Update {
	return gradebook.Update{StudentKey: "u1@x,com", CourseID: "2", AssessmentID: "q1", Score: score, MaxScore: 2,
		At: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)}
}

func seedLinked(t *testing.T) (*gradebook.MemoryStore, *fakeAGS, *gradebook.Syncer) {
	t.Helper()
	st := gradebook.NewInMemoryStore()
	st.LinkCourse(gradebook.LTILink{
		CourseID: "2", PlatformIssuer: "iss-1", DeploymentID: "dep-1", ContextID: "ctx-1", ResourceLinkID: "rl-1",
		LineItemsURL: "https://lms.example/lineitems",
	})
	st.MapUser("iss-1", "u1@x,com", "platform-sub-123")
	ags := &fakeAGS{}
	return st, ags, gradebook.New(st, catalog, ags, time.Now)
}

func TestSyncer_LocalLedgerOnly(t *testing.T) {
	st := gradebook.NewInMemoryStore()
	syncer := gradebook.New(st, catalog, nil, nil)

	if err := syncer.Sync(context.Background(), update(2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries, err := syncer.List(context.Background(), "2", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Title != "Lesson 1 Quiz" || e.Unit != "Unit 1" || e.Weight != 0.05 || e.Score != 2 {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestSyncer_LedgerNeverDecreases(t *testing.T) {
	st := gradebook.NewInMemoryStore()
	syncer := gradebook.New(st, catalog, nil, nil)
	ctx := context.Background()

	_ = syncer.Sync(ctx, update(2))
	_ = syncer.Sync(ctx, update(0))
	entries, _ := syncer.List(ctx, "2", "u1@x,com")
	if len(entries) != 1 || entries[0].Score != 2 {
		t.Fatalf("expected score to stay at 2, got %+v", entries)
	}
}

func TestSyncer_UnknownAssessment(t *testing.T) {
	syncer := gradebook.New(gradebook.NewInMemoryStore(), catalog, nil, nil)
	u := update(1)
	u.AssessmentID = "missing"
	if err := syncer.Sync(context.Background(), u); err == nil {
		t.Fatal("expected metadata error")
	}
}

func TestSyncer_CreatesAndPosts(t *testing.T) {
	st, ags, syncer := seedLinked(t)

	if err := syncer.Sync(context.Background(), update(2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ags.createdResp == nil {
		t.Fatalf("expected CreateLineItem to be called")
	}
	if ags.createdReq.ResourceID != "2:q1" || ags.createdReq.Label != "Lesson 1 Quiz" {
		t.Fatalf("unexpected create request %+v", ags.createdReq)
	}
	if ags.postCalls != 1 || ags.lastScore.UserID != "platform-sub-123" || ags.lastScore.ScoreGiven != 2 {
		t.Fatalf("unexpected score post: calls=%d score=%+v", ags.postCalls, ags.lastScore)
	}
	if _, err := st.FindLineItem(context.Background(), "2", "q1", "iss-1"); err != nil {
		t.Fatalf("expected line item persisted in store: %v", err)
	}
	status, _ := st.GetSyncStatus(context.Background(), "2|q1|u1@x,com")
	if status.Status != "ok" {
		t.Fatalf("expected sync status ok; got %q", status.Status)
	}
}

func TestSyncer_UsesExistingLineItem(t *testing.T) {
	_, ags, syncer := seedLinked(t)
	ags.listed = []gradebook.LineItem{{
		ID:           "https://lms.example/lineitems/exist",
		Label:        "Lesson 1 Quiz",
		ScoreMaximum: 2,
		ResourceID:   "2:q1",
	}}

	if err := syncer.Sync(context.Background(), update(2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ags.createdResp != nil {
		t.Fatalf("did not expect CreateLineItem to be called")
	}
	if ags.postCalls != 1 {
		t.Fatalf("expected 1 PostScore call, got %d", ags.postCalls)
	}
}

func TestSyncer_FailsWithoutUserMapping(t *testing.T) {
	st := gradebook.NewInMemoryStore()
	st.LinkCourse(gradebook.LTILink{CourseID: "2", PlatformIssuer: "iss-1", LineItemsURL: "https://lms.example/lineitems"})
	ags := &fakeAGS{}
	syncer := gradebook.New(st, catalog, ags, time.Now)

	if err := syncer.Sync(context.Background(), update(2)); err == nil {
		t.Fatalf("expected error without platform user mapping")
	}
	status, _ := st.GetSyncStatus(context.Background(), "2|q1|u1@x,com")
	if status.Status != "failed" || status.Retries != 1 {
		t.Fatalf("expected failed status with 1 retry; got %+v", status)
	}
	if ags.postCalls != 0 {
		t.Fatalf("expected 0 PostScore calls, got %d", ags.postCalls)
	}
	// the local ledger is still updated
	entries, _ := syncer.List(context.Background(), "2", "")
	if len(entries) != 1 {
		t.Fatalf("expected ledger entry despite passback failure")
	}
}

func TestSyncer_PostFailureMarksFailed(t *testing.T) {
	st, ags, syncer := seedLinked(t)
	ags.postErr = errors.New("503 Service Unavailable")

	if err := syncer.Sync(context.Background(), update(1)); err == nil {
		t.Fatal("expected post error")
	}
	status, _ := st.GetSyncStatus(context.Background(), "2|q1|u1@x,com")
	if status.Status != "failed" || status.LastError == "" {
		t.Fatalf("unexpected status %+v", status)
	}
}
