package gradebook

import (
	"context"
	"sort"
	"sync"
)

type MemoryStore struct {
	mu          sync.Mutex
	entries     map[string]Entry
	links       map[string]LTILink           // courseID
	lineitems   map[string]GradebookLineItem // course|assessment|issuer
	lineitemSeq int64
	userMap     map[string]string // issuer|studentKey => platform sub
	syncStatus  map[string]SyncStatus
}

// NewInMemoryStore keeps the ledger in process; used for offline runs and tests.
func NewInMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:    map[string]Entry{},
		links:      map[string]LTILink{},
		lineitems:  map[string]GradebookLineItem{},
		userMap:    map[string]string{},
		syncStatus: map[string]SyncStatus{},
	}
}

// LinkCourse registers the LTI context of a course.
func (s *MemoryStore) LinkCourse(l LTILink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[l.CourseID] = l
}

// MapUser records the platform subject of a student.
func (s *MemoryStore) MapUser(issuer, studentKey, platformSub string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userMap[issuer+"|"+studentKey] = platformSub
}

func (s *MemoryStore) UpsertEntry(_ context.Context, e Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := e.SyncKey()
	if cur, ok := s.entries[k]; ok && cur.Score > e.Score {
		e.Score = cur.Score
	}
	s.entries[k] = e
	return e, nil
}

func (s *MemoryStore) ListEntries(_ context.Context, courseID, studentKey string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.CourseID == courseID && (studentKey == "" || e.StudentKey == studentKey) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StudentKey != out[j].StudentKey {
			return out[i].StudentKey < out[j].StudentKey
		}
		return out[i].AssessmentID < out[j].AssessmentID
	})
	return out, nil
}

func (s *MemoryStore) GetCourseLink(_ context.Context, courseID string) (LTILink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[courseID]
	if !ok {
		return LTILink{}, ErrNoLink
	}
	return l, nil
}

func (s *MemoryStore) UpsertLineItem(_ context.Context, li GradebookLineItem) (GradebookLineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := li.CourseID + "|" + li.AssessmentID + "|" + li.PlatformIssuer
	if existing, ok := s.lineitems[k]; ok {
		existing.Label = li.Label
		existing.ScoreMax = li.ScoreMax
		existing.LineItemURL = li.LineItemURL
		s.lineitems[k] = existing
		return existing, nil
	}
	s.lineitemSeq++
	li.ID = s.lineitemSeq
	s.lineitems[k] = li
	return li, nil
}

func (s *MemoryStore) FindLineItem(_ context.Context, courseID, assessmentID, issuer string) (GradebookLineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	li, ok := s.lineitems[courseID+"|"+assessmentID+"|"+issuer]
	if !ok {
		return GradebookLineItem{}, ErrNotFound
	}
	return li, nil
}

func (s *MemoryStore) GetPlatformUserID(_ context.Context, issuer, studentKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.userMap[issuer+"|"+studentKey]
	if !ok {
		return "", ErrNotFound
	}
	return sub, nil
}

func (s *MemoryStore) MarkSyncPending(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.syncStatus[key]
	st.Key, st.Status = key, "pending"
	s.syncStatus[key] = st
	return nil
}

func (s *MemoryStore) MarkSyncOK(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.syncStatus[key]
	st.Key, st.Status, st.LastError = key, "ok", ""
	s.syncStatus[key] = st
	return nil
}

func (s *MemoryStore) MarkSyncFailed(_ context.Context, key, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.syncStatus[key]
	st.Key, st.Status, st.LastError, st.Retries = key, "failed", lastErr, st.Retries+1
	s.syncStatus[key] = st
	return nil
}

func (s *MemoryStore) GetSyncStatus(_ context.Context, key string) (SyncStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.syncStatus[key]
	if !ok {
		return SyncStatus{}, ErrNotFound
	}
	return st, nil
}
