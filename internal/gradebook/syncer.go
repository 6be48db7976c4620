package gradebook

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Clock func() time.Time

// Syncer maintains the local ledger and, for LTI linked courses, posts the
// score to the platform gradebook.
type Syncer struct {
	Store   Store
	Catalog Catalog
	AGS     AGSClient // nil keeps the ledger local
	Now     Clock
}

func New(store Store, catalog Catalog, ags AGSClient, now Clock) *Syncer {
	if now == nil {
		now = time.Now
	}
	return &Syncer{Store: store, Catalog: catalog, AGS: ags, Now: now}
}

// Sync records u in the ledger. Callers only pass improved scores.
func (s *Syncer) Sync(ctx context.Context, u Update) error {
	md, err := s.Catalog.GradebookMetadata(u.CourseID, u.AssessmentID)
	if err != nil {
		return fmt.Errorf("course metadata: %w", err)
	}
	at := u.At
	if at.IsZero() {
		at = s.Now()
	}
	entry, err := s.Store.UpsertEntry(ctx, Entry{
		StudentKey: u.StudentKey, CourseID: u.CourseID, AssessmentID: u.AssessmentID,
		Title: md.Title, Unit: md.Unit, Weight: md.Weight,
		Score: u.Score, MaxScore: u.MaxScore, UpdatedAt: at.UTC(),
	})
	if err != nil {
		return fmt.Errorf("upsert entry: %w", err)
	}
	if s.AGS == nil {
		return nil
	}
	link, err := s.Store.GetCourseLink(ctx, u.CourseID)
	if errors.Is(err, ErrNoLink) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("course link: %w", err)
	}
	return s.passback(ctx, link, entry)
}

func (s *Syncer) passback(ctx context.Context, link LTILink, entry Entry) error {
	key := entry.SyncKey()
	_ = s.Store.MarkSyncPending(ctx, key)

	li, err := s.EnsureLineItem(ctx, link, entry)
	if err != nil {
		_ = s.Store.MarkSyncFailed(ctx, key, err.Error())
		return err
	}

	platformUserID, err := s.Store.GetPlatformUserID(ctx, link.PlatformIssuer, entry.StudentKey)
	if err != nil || platformUserID == "" {
		_ = s.Store.MarkSyncFailed(ctx, key, "no platform user mapping")
		return fmt.Errorf("no platform user mapping for %s", entry.StudentKey)
	}

	if err := s.AGS.PostScore(ctx, li.LineItemURL, Score{
		UserID: platformUserID, ScoreGiven: entry.Score, ScoreMaximum: entry.MaxScore,
		ActivityProgress: "Completed", GradingProgress: "FullyGraded",
		Timestamp: s.Now(),
	}); err != nil {
		_ = s.Store.MarkSyncFailed(ctx, key, err.Error())
		return err
	}
	return s.Store.MarkSyncOK(ctx, key)
}

func resourceID(courseID, assessmentID string) string { return courseID + ":" + assessmentID }

// EnsureLineItem finds or creates the platform line item of an assessment.
func (s *Syncer) EnsureLineItem(ctx context.Context, link LTILink, entry Entry) (GradebookLineItem, error) {
	if li, err := s.Store.FindLineItem(ctx, entry.CourseID, entry.AssessmentID, link.PlatformIssuer); err == nil && li.LineItemURL != "" {
		return li, nil
	}
	if link.LineItemsURL == "" {
		return GradebookLineItem{}, errors.New("missing lineitems_url")
	}
	rid := resourceID(entry.CourseID, entry.AssessmentID)

	items, err := s.AGS.ListLineItems(ctx, link.LineItemsURL, map[string]string{
		"resource_id":      rid,
		"resource_link_id": link.ResourceLinkID,
	})
	if err == nil {
		for _, it := range items {
			if it.ResourceID == rid {
				return s.Store.UpsertLineItem(ctx, GradebookLineItem{
					CourseID: entry.CourseID, AssessmentID: entry.AssessmentID, PlatformIssuer: link.PlatformIssuer,
					Label: it.Label, ScoreMax: it.ScoreMaximum, LineItemURL: it.ID,
				})
			}
		}
	}
	created, err := s.AGS.CreateLineItem(ctx, link.LineItemsURL, CreateLineItemReq{
		Label: entry.Title, ScoreMaximum: entry.MaxScore, ResourceID: rid, ResourceLinkID: link.ResourceLinkID,
	})
	if err != nil {
		return GradebookLineItem{}, fmt.Errorf("create line item: %w", err)
	}
	return s.Store.UpsertLineItem(ctx, GradebookLineItem{
		CourseID: entry.CourseID, AssessmentID: entry.AssessmentID, PlatformIssuer: link.PlatformIssuer,
		Label: created.Label, ScoreMax: created.ScoreMaximum, LineItemURL: created.ID,
	})
}

// List returns ledger entries of a course, optionally for one student.
func (s *Syncer) List(ctx context.Context, courseID, studentKey string) ([]Entry, error) {
	return s.Store.ListEntries(ctx, courseID, studentKey)
}
