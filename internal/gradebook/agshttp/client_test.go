package agshttp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtdacademy/assessments/internal/gradebook"
)

func platform(t *testing.T, mux *http.ServeMux) (*httptest.Server, *Client) {
	t.Helper()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok","token_type":"Bearer","expires_in":3600}`)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, New(Config{TokenURL: ts.URL + "/token", ClientID: "c", ClientSecret: "s", Timeout: 5 * time.Second})
}

func TestListLineItemsFollowsNextLink(t *testing.T) {
	mux := http.NewServeMux()
	var ts *httptest.Server
	mux.HandleFunc("/lineitems", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "2:unit1_exam_q1", r.URL.Query().Get("resource_id"))
		if r.URL.Query().Get("page") == "" {
			w.Header().Set("Link", `<`+ts.URL+`/lineitems?page=2&resource_id=2%3Aunit1_exam_q1>; rel="next"`)
			_, _ = io.WriteString(w, `[{"id":"a","label":"A","scoreMaximum":2,"resourceId":"x"}]`)
			return
		}
		_, _ = io.WriteString(w, `[{"id":"b","label":"B","scoreMaximum":2,"resourceId":"2:unit1_exam_q1"}]`)
	})
	ts, c := platform(t, mux)

	items, err := c.ListLineItems(context.Background(), ts.URL+"/lineitems", map[string]string{"resource_id": "2:unit1_exam_q1"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[1].ID)
	assert.Equal(t, "2:unit1_exam_q1", items[1].ResourceID)
}

func TestCreateLineItemNeedsID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/lineitems", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, mediaLineItem, r.Header.Get("Content-Type"))
		_, _ = io.WriteString(w, `{"label":"no id"}`)
	})
	ts, c := platform(t, mux)
	_, err := c.CreateLineItem(context.Background(), ts.URL+"/lineitems", gradebook.CreateLineItemReq{Label: "x", ScoreMaximum: 1})
	assert.ErrorContains(t, err, "no id")
}

func TestPostScore(t *testing.T) {
	mux := http.NewServeMux()
	var got score
	mux.HandleFunc("/lineitems/7/scores", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, mediaScore, r.Header.Get("Content-Type"))
		assert.Equal(t, "v=1", r.URL.RawQuery)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/lineitems/8/scores", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "user not enrolled", http.StatusUnprocessableEntity)
	})
	ts, c := platform(t, mux)

	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	err := c.PostScore(context.Background(), ts.URL+"/lineitems/7?v=1", gradebook.Score{
		UserID: "sub-1", ScoreGiven: 2, ScoreMaximum: 2,
		ActivityProgress: "Completed", GradingProgress: "FullyGraded", Timestamp: at,
	})
	require.NoError(t, err)
	assert.Equal(t, "sub-1", got.UserID)
	assert.Equal(t, "2026-03-01T09:30:00Z", got.Timestamp)

	err = c.PostScore(context.Background(), ts.URL+"/lineitems/8/", gradebook.Score{UserID: "sub-2"})
	assert.ErrorContains(t, err, "user not enrolled")
}

func TestNextLink(t *testing.T) {
	assert.Equal(t, "https://p/x?page=2", nextLink(`<https://p/x?page=2>; rel="next", <https://p/x?page=9>; rel="last"`))
	assert.Equal(t, "", nextLink(`<https://p/x?page=9>; rel="last"`))
	assert.Equal(t, "", nextLink(""))
}
