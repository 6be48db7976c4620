package gradebook

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNoLink   = errors.New("course is not linked to an LTI platform")
	ErrNotFound = errors.New("not found")
)

// Update is a new best score for one student on one assessment.
type Update struct {
	StudentKey   string
	CourseID     string
	AssessmentID string
	Score        float64
	MaxScore     float64
	At           time.Time
}

// Metadata is the course-structure information attached to a ledger entry.
type Metadata struct {
	Title  string
	Unit   string
	Weight float64
}

// Catalog resolves course-structure metadata from the course layer.
type Catalog interface {
	GradebookMetadata(courseID, assessmentID string) (Metadata, error)
}

type Entry struct {
	StudentKey   string    `json:"studentKey"`
	CourseID     string    `json:"courseId"`
	AssessmentID string    `json:"assessmentId"`
	Title        string    `json:"title"`
	Unit         string    `json:"unit,omitempty"`
	Weight       float64   `json:"weight"`
	Score        float64   `json:"score"`
	MaxScore     float64   `json:"maxScore"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// SyncKey identifies the passback status row of an entry.
func (e Entry) SyncKey() string {
	return e.CourseID + "|" + e.AssessmentID + "|" + e.StudentKey
}

type LTILink struct {
	CourseID, PlatformIssuer, DeploymentID, ContextID, ResourceLinkID string
	LineItemsURL                                                      string
}

type GradebookLineItem struct {
	ID                     int64
	CourseID, AssessmentID string
	PlatformIssuer         string
	Label                  string
	ScoreMax               float64
	LineItemURL            string // absolute URL
}

type SyncStatus struct {
	Key       string
	Status    string // pending|ok|failed
	Retries   int
	LastError string
}

// Store: the ledger plus LTI bookkeeping; see sqlstore.Store and NewInMemoryStore.
type Store interface {
	UpsertEntry(ctx context.Context, e Entry) (Entry, error)
	ListEntries(ctx context.Context, courseID, studentKey string) ([]Entry, error)

	GetCourseLink(ctx context.Context, courseID string) (LTILink, error)
	UpsertLineItem(ctx context.Context, li GradebookLineItem) (GradebookLineItem, error)
	FindLineItem(ctx context.Context, courseID, assessmentID, issuer string) (GradebookLineItem, error)
	GetPlatformUserID(ctx context.Context, issuer, studentKey string) (string, error)

	MarkSyncPending(ctx context.Context, key string) error
	MarkSyncOK(ctx context.Context, key string) error
	MarkSyncFailed(ctx context.Context, key, lastErr string) error
	GetSyncStatus(ctx context.Context, key string) (SyncStatus, error)
}

type LineItem struct {
	ID, Label, ResourceID, ResourceLinkID string
	ScoreMaximum                          float64
}

type CreateLineItemReq struct {
	Label          string
	ScoreMaximum   float64
	ResourceID     string
	ResourceLinkID string
}

type Score struct {
	UserID, ActivityProgress, GradingProgress string
	ScoreGiven, ScoreMaximum                  float64
	Timestamp                                 time.Time
}

type AGSClient interface {
	ListLineItems(ctx context.Context, lineItemsURL string, q map[string]string) ([]LineItem, error)
	CreateLineItem(ctx context.Context, lineItemsURL string, req CreateLineItemReq) (LineItem, error)
	PostScore(ctx context.Context, lineItemURL string, s Score) error
}
