/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sprintboard/internal/config"
	"sprintboard/internal/domain"
)

// ErrUpstreamUnavailable marks a transient upstream failure that survived the
// full retry budget. Callers surface it as "temporarily unavailable, retry".
var ErrUpstreamUnavailable = errors.New("jira: upstream unavailable")

// StatusError is a non-503 error response passed through to the caller
// unretried; 4xx means a logic or configuration problem, not a transient one.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jira api status=%d body=%s", e.Code, e.Body)
}

type Client struct {
	baseURL string
	email   string
	token   string
	http    *http.Client
	log     zerolog.Logger

	maxRetries int
	retryStep  time.Duration
	sleep      func(time.Duration)

	pointsField   string
	customerField string
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	return &Client{
		baseURL:       cfg.JiraBaseURL,
		email:         cfg.JiraEmail,
		token:         cfg.JiraToken,
		http:          &http.Client{Timeout: cfg.HTTPTimeout},
		log:           log,
		maxRetries:    cfg.FetchRetries,
		retryStep:     cfg.FetchRetryStep,
		sleep:         time.Sleep,
		pointsField:   cfg.JiraPointsField,
		customerField: cfg.JiraCustomerField,
	}
}

func (c *Client) apiURL(path string, q url.Values) string {
	base := strings.TrimRight(c.baseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := base + path
	if len(q) > 0 {
		u = u + "?" + q.Encode()
	}
	return u
}

// fetch performs one upstream GET with the bounded retry loop: 503 and
// network-level failures are retried up to maxRetries total attempts with a
// linearly increasing delay (attempt * retryStep); any other error status is
// returned to the caller immediately as a *StatusError.
func (c *Client) fetch(ctx context.Context, u string) ([]byte, error) {
	if c.baseURL == "" {
		return nil, errors.New("jira: empty baseURL")
	}
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.SetBasicAuth(c.email, c.token)
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
		} else {
			b, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusServiceUnavailable {
				lastErr = &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
			} else if resp.StatusCode >= 300 {
				return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
			} else {
				return b, nil
			}
		}
		if attempt < c.maxRetries {
			c.sleep(time.Duration(attempt) * c.retryStep)
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrUpstreamUnavailable, c.maxRetries, lastErr)
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	b, err := c.fetch(ctx, u)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

type sprintWire struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	State         string `json:"state"`
	Goal          string `json:"goal"`
	OriginBoardID int64  `json:"originBoardId"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	CompleteDate  string `json:"completeDate"`
}

type sprintPage struct {
	MaxResults int          `json:"maxResults"`
	StartAt    int          `json:"startAt"`
	IsLast     bool         `json:"isLast"`
	Values     []sprintWire `json:"values"`
}

func (w sprintWire) toIteration() domain.Iteration {
	return domain.Iteration{
		ID:         w.ID,
		Name:       w.Name,
		State:      domain.IterationState(w.State),
		Goal:       w.Goal,
		BoardID:    w.OriginBoardID,
		StartAt:    parseTime(w.StartDate),
		EndAt:      parseTime(w.EndDate),
		CompleteAt: parseTime(w.CompleteDate),
	}
}

// BoardSprints lists a board's sprints filtered by lifecycle state, following
// the agile API's startAt/isLast pagination.
func (c *Client) BoardSprints(ctx context.Context, boardID int64, state domain.IterationState) ([]domain.Iteration, error) {
	if boardID <= 0 {
		return nil, errors.New("jira: invalid board id")
	}
	var out []domain.Iteration
	startAt := 0
	for {
		q := url.Values{}
		q.Set("state", string(state))
		q.Set("maxResults", "50")
		if startAt > 0 {
			q.Set("startAt", fmt.Sprint(startAt))
		}
		var page sprintPage
		u := c.apiURL("/rest/agile/1.0/board/"+strconv.FormatInt(boardID, 10)+"/sprint", q)
		if err := c.getJSON(ctx, u, &page); err != nil {
			return nil, err
		}
		for _, w := range page.Values {
			out = append(out, w.toIteration())
		}
		if page.IsLast || len(page.Values) == 0 {
			break
		}
		startAt += len(page.Values)
	}
	return out, nil
}

// Sprint fetches a single sprint by id.
func (c *Client) Sprint(ctx context.Context, sprintID int64) (*domain.Iteration, error) {
	if sprintID <= 0 {
		return nil, errors.New("jira: invalid sprint id")
	}
	var w sprintWire
	u := c.apiURL("/rest/agile/1.0/sprint/"+strconv.FormatInt(sprintID, 10), nil)
	if err := c.getJSON(ctx, u, &w); err != nil {
		return nil, err
	}
	it := w.toIteration()
	return &it, nil
}

type issueWire struct {
	Key    string         `json:"key"`
	Fields map[string]any `json:"fields"`
}

type issuePage struct {
	MaxResults int         `json:"maxResults"`
	StartAt    int         `json:"startAt"`
	Total      int         `json:"total"`
	Issues     []issueWire `json:"issues"`
}

// SprintIssues lists the work items assigned to a sprint, projected to the
// fields this service needs and normalized at the boundary.
func (c *Client) SprintIssues(ctx context.Context, sprintID int64) ([]domain.WorkItem, error) {
	if sprintID <= 0 {
		return nil, errors.New("jira: invalid sprint id")
	}
	fields := strings.Join([]string{
		"summary", "status", "issuetype", "assignee",
		"created", "duedate", "resolutiondate",
		c.pointsField, c.customerField,
	}, ",")
	var out []domain.WorkItem
	startAt := 0
	for {
		q := url.Values{}
		q.Set("fields", fields)
		q.Set("maxResults", "50")
		if startAt > 0 {
			q.Set("startAt", fmt.Sprint(startAt))
		}
		var page issuePage
		u := c.apiURL("/rest/agile/1.0/sprint/"+strconv.FormatInt(sprintID, 10)+"/issue", q)
		if err := c.getJSON(ctx, u, &page); err != nil {
			return nil, err
		}
		for _, iw := range page.Issues {
			out = append(out, c.workItem(iw))
		}
		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			break
		}
	}
	return out, nil
}

type changelogWire struct {
	Key       string         `json:"key"`
	Fields    map[string]any `json:"fields"`
	Changelog struct {
		Histories []struct {
			Created string `json:"created"`
			Items   []struct {
				Field      string `json:"field"`
				FromString string `json:"fromString"`
				ToString   string `json:"toString"`
			} `json:"items"`
		} `json:"histories"`
	} `json:"changelog"`
}

// ItemHistory fetches one item's current status, creation timestamp and full
// audit trail, ordered oldest first.
func (c *Client) ItemHistory(ctx context.Context, key string) (*domain.ItemHistory, error) {
	if key == "" {
		return nil, errors.New("jira: empty issue key")
	}
	q := url.Values{}
	q.Set("fields", "status,created")
	q.Set("expand", "changelog")
	u := c.apiURL("/rest/api/2/issue/"+url.PathEscape(key), q)
	var w changelogWire
	if err := c.getJSON(ctx, u, &w); err != nil {
		return nil, err
	}
	created := parseTime(strOf(w.Fields["created"]))
	if created == nil {
		return nil, fmt.Errorf("jira: issue %s has no parsable created timestamp", key)
	}
	h := &domain.ItemHistory{
		Status:    labelString(w.Fields["status"]),
		CreatedAt: *created,
	}
	for _, hist := range w.Changelog.Histories {
		at := parseTime(hist.Created)
		if at == nil {
			continue
		}
		for _, it := range hist.Items {
			h.Events = append(h.Events, domain.ChangeEvent{
				At:    *at,
				Field: it.Field,
				From:  it.FromString,
				To:    it.ToString,
			})
		}
	}
	// the API does not guarantee ordering across pages of histories
	sort.SliceStable(h.Events, func(i, j int) bool { return h.Events[i].At.Before(h.Events[j].At) })
	return h, nil
}
