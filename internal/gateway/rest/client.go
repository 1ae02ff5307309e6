// Package rest implements gateway.Gateway over a hosted PostgREST data API
// and its GoTrue authentication API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/edvin/subadmin/internal/gateway"
	"github.com/edvin/subadmin/internal/model"
)

const maxErrorBody = 64 << 10

type Client struct {
	baseURL    string
	anonKey    string
	schema     string
	httpClient *http.Client
	now        func() time.Time

	mu        sync.RWMutex
	session   *model.Session
	listeners gateway.Listeners
}

// NewClient creates a client for the project at baseURL. schema selects the
// exposed Postgres schema; empty uses the server default.
func NewClient(baseURL, anonKey, schema string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		schema:  schema,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

var _ gateway.Gateway = (*Client)(nil)

func (c *Client) Select(ctx context.Context, q gateway.Query, dest any) error {
	params := url.Values{}
	params.Set("select", selectClause(q))
	addFilters(params, q.Filters)
	if len(q.Order) > 0 {
		params.Set("order", orderClause(q.Order))
	}
	limit := q.Limit
	if q.Single && (limit == 0 || limit > 2) {
		// Two rows are enough to tell "one" from "more than one".
		limit = 2
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	req, err := c.newRequest(ctx, http.MethodGet, restPath(q.Relation), params, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return fmt.Errorf("select %s: %w", q.Relation, err)
	}
	return gateway.DecodeRows(body, q, dest)
}

func (c *Client) Insert(ctx context.Context, relation string, record any) error {
	req, err := c.newRequest(ctx, http.MethodPost, restPath(relation), nil, record)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")

	if _, err := c.do(req); err != nil {
		return fmt.Errorf("insert %s: %w", relation, err)
	}
	return nil
}

func (c *Client) Update(ctx context.Context, relation string, patch map[string]any, filters ...gateway.Filter) error {
	if len(filters) == 0 {
		return fmt.Errorf("update %s: refusing update without filters", relation)
	}
	params := url.Values{}
	addFilters(params, filters)

	req, err := c.newRequest(ctx, http.MethodPatch, restPath(relation), params, patch)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")

	if _, err := c.do(req); err != nil {
		return fmt.Errorf("update %s: %w", relation, err)
	}
	return nil
}

// Ping issues the cheapest possible read, the way the admin tests its connection.
func (c *Client) Ping(ctx context.Context) error {
	var rows []struct {
		ID int64 `json:"id"`
	}
	return c.Select(ctx, gateway.Query{Relation: model.RelationUser, Columns: []string{"id"}, Limit: 1}, &rows)
}

func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values, body any) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.bearer())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.schema != "" && strings.HasPrefix(path, "/rest/") {
		if method == http.MethodGet || method == http.MethodHead {
			req.Header.Set("Accept-Profile", c.schema)
		} else {
			req.Header.Set("Content-Profile", c.schema)
		}
	}
	return req, nil
}

// bearer returns the session access token, or the anon key when signed out.
func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session != nil && c.session.AccessToken != "" {
		return c.session.AccessToken
	}
	return c.anonKey
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("data API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, decodeError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// decodeError turns a PostgREST error body into a *gateway.Error.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &gateway.Error{Status: resp.StatusCode}
	if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return apiErr
}

func restPath(relation string) string {
	return "/rest/v1/" + url.PathEscape(relation)
}

func selectClause(q gateway.Query) string {
	parts := []string{columnList(q.Columns)}
	for _, e := range q.Expand {
		parts = append(parts, embedClause(e))
	}
	return strings.Join(parts, ",")
}

// embedClause renders an expansion. Single-key expansions onto the related
// id embed through the foreign key column (alias:user_id(...)); composite
// joins let PostgREST resolve the relationship by relation name.
func embedClause(e gateway.Expand) string {
	cols := "(" + columnList(e.Columns) + ")"
	if len(e.On) == 1 && e.On[0].Foreign == "id" {
		return e.Key() + ":" + e.On[0].Local + cols
	}
	if e.Alias != "" && e.Alias != e.Relation {
		return e.Alias + ":" + e.Relation + cols
	}
	return e.Relation + cols
}

func columnList(cols []string) string {
	if len(cols) == 0 {
		return "*"
	}
	return strings.Join(cols, ",")
}

func orderClause(order []gateway.Order) string {
	parts := make([]string, 0, len(order))
	for _, o := range order {
		dir := "asc"
		if o.Desc {
			dir = "desc"
		}
		parts = append(parts, o.Column+"."+dir)
	}
	return strings.Join(parts, ",")
}

func addFilters(params url.Values, filters []gateway.Filter) {
	for _, f := range filters {
		if f.Value == nil {
			params.Add(f.Column, "is.null")
			continue
		}
		params.Add(f.Column, fmt.Sprintf("eq.%v", f.Value))
	}
}
