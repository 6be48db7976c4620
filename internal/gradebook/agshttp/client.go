// Package agshttp posts gradebook scores to an LTI Advantage (AGS) platform.
package agshttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/rtdacademy/assessments/internal/gradebook"
)

const (
	scopeLineItem = "https://purl.imsglobal.org/spec/lti-ags/scope/lineitem"
	scopeScore    = "https://purl.imsglobal.org/spec/lti-ags/scope/score"

	mediaLineItem      = "application/vnd.ims.lis.v2.lineitem+json"
	mediaLineItemList  = "application/vnd.ims.lis.v2.lineitemcontainer+json"
	mediaScore         = "application/vnd.ims.lis.v1.score+json"
	maxLineItemPages   = 20
	maxErrorBodyLength = 512
)

type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client implements gradebook.AGSClient. Every request carries a bearer token
// obtained with the OAuth2 client credentials grant.
type Client struct {
	http *http.Client
}

func New(cfg Config) *Client {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       []string{scopeLineItem, scopeScore},
	}
	h := cc.Client(context.Background())
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	return &Client{http: h}
}

type lineItem struct {
	ID             string  `json:"id,omitempty"`
	Label          string  `json:"label"`
	ScoreMaximum   float64 `json:"scoreMaximum"`
	ResourceID     string  `json:"resourceId,omitempty"`
	ResourceLinkID string  `json:"resourceLinkId,omitempty"`
}

func (it lineItem) domain() gradebook.LineItem {
	return gradebook.LineItem{
		ID: it.ID, Label: it.Label, ScoreMaximum: it.ScoreMaximum,
		ResourceID: it.ResourceID, ResourceLinkID: it.ResourceLinkID,
	}
}

type score struct {
	UserID           string  `json:"userId"`
	ScoreGiven       float64 `json:"scoreGiven"`
	ScoreMaximum     float64 `json:"scoreMaximum"`
	ActivityProgress string  `json:"activityProgress"`
	GradingProgress  string  `json:"gradingProgress"`
	Timestamp        string  `json:"timestamp"`
}

// ListLineItems follows rel="next" links until the container is exhausted.
func (c *Client) ListLineItems(ctx context.Context, lineItemsURL string, q map[string]string) ([]gradebook.LineItem, error) {
	u, err := url.Parse(lineItemsURL)
	if err != nil {
		return nil, err
	}
	params := u.Query()
	for k, v := range q {
		params.Set(k, v)
	}
	u.RawQuery = params.Encode()

	var out []gradebook.LineItem
	next := u.String()
	for page := 0; next != "" && page < maxLineItemPages; page++ {
		var items []lineItem
		res, err := c.do(ctx, http.MethodGet, next, "", mediaLineItemList, nil, &items)
		if err != nil {
			return nil, fmt.Errorf("list line items: %w", err)
		}
		for _, it := range items {
			out = append(out, it.domain())
		}
		next = nextLink(res.Header.Get("Link"))
	}
	return out, nil
}

func (c *Client) CreateLineItem(ctx context.Context, lineItemsURL string, req gradebook.CreateLineItemReq) (gradebook.LineItem, error) {
	in := lineItem{
		Label: req.Label, ScoreMaximum: req.ScoreMaximum,
		ResourceID: req.ResourceID, ResourceLinkID: req.ResourceLinkID,
	}
	var created lineItem
	if _, err := c.do(ctx, http.MethodPost, lineItemsURL, mediaLineItem, mediaLineItem, in, &created); err != nil {
		return gradebook.LineItem{}, fmt.Errorf("create line item: %w", err)
	}
	if created.ID == "" {
		return gradebook.LineItem{}, fmt.Errorf("create line item: platform returned no id")
	}
	return created.domain(), nil
}

// PostScore posts to {lineItemURL}/scores, keeping any query string on the
// line item URL.
func (c *Client) PostScore(ctx context.Context, lineItemURL string, s gradebook.Score) error {
	u, err := url.Parse(lineItemURL)
	if err != nil {
		return err
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/scores"
	body := score{
		UserID: s.UserID, ScoreGiven: s.ScoreGiven, ScoreMaximum: s.ScoreMaximum,
		ActivityProgress: s.ActivityProgress, GradingProgress: s.GradingProgress,
		Timestamp: s.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if _, err := c.do(ctx, http.MethodPost, u.String(), mediaScore, "", body, nil); err != nil {
		return fmt.Errorf("post score: %w", err)
	}
	return nil
}

// do sends one request and decodes a 2xx JSON body into out when out is set.
func (c *Client) do(ctx context.Context, method, target, contentType, accept string, in, out any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodyLength))
		if len(bytes.TrimSpace(msg)) == 0 {
			return res, fmt.Errorf("%s", res.Status)
		}
		return res, fmt.Errorf("%s: %s", res.Status, bytes.TrimSpace(msg))
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return res, fmt.Errorf("decode response: %w", err)
		}
	}
	return res, nil
}

var linkNext = regexp.MustCompile(`<([^>]+)>\s*;[^,]*rel="?next"?`)

func nextLink(header string) string {
	if m := linkNext.FindStringSubmatch(header); m != nil {
		return m[1]
	}
	return ""
}
