package client

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

type AdminUserQuery struct {
	Query  string
	Role   string
	Status string
	Page
}

// AdminUpdateUserRequest changes role and/or status
type AdminUpdateUserRequest struct {
	Role   *string `json:"role,omitempty"`
	Status *string `json:"status,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

type SecurityEventQuery struct {
	Type     string
	Severity string
	UserID   string
	Since    time.Time
	Page
}

func (c *Client) AdminListUsers(ctx context.Context, q AdminUserQuery) (*UserList, error) {
	var out UserList
	err := c.do(ctx, http.MethodGet, "/admin/users", nil, &out, withQuery(map[string]string{
		"q":      q.Query,
		"role":   q.Role,
		"status": q.Status,
		"limit":  pageParam(q.Limit),
		"offset": pageParam(q.Offset),
	}))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminGetUser(ctx context.Context, id string) (*AdminUserDetail, error) {
	var out AdminUserDetail
	if err := c.do(ctx, http.MethodGet, "/admin/users/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminUpdateUser(ctx context.Context, id string, req AdminUpdateUserRequest) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPatch, "/admin/users/"+url.PathEscape(id), req, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) SecurityEvents(ctx context.Context, q SecurityEventQuery) (*SecurityEventList, error) {
	params := map[string]string{
		"type":     q.Type,
		"severity": q.Severity,
		"user_id":  q.UserID,
		"limit":    pageParam(q.Limit),
		"offset":   pageParam(q.Offset),
	}
	if !q.Since.IsZero() {
		params["since"] = q.Since.UTC().Format(time.RFC3339)
	}

	var out SecurityEventList
	if err := c.do(ctx, http.MethodGet, "/admin/security/events", nil, &out, withQuery(params)); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RateLimitStatus(ctx context.Context) (*RateLimitStatus, error) {
	var out RateLimitStatus
	if err := c.do(ctx, http.MethodGet, "/admin/security/rate-limit", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AnalyticsOverview(ctx context.Context) (*AnalyticsOverview, error) {
	var out AnalyticsOverview
	if err := c.do(ctx, http.MethodGet, "/admin/analytics/overview", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RealtimeStats(ctx context.Context) (*RealtimeStats, error) {
	var out RealtimeStats
	if err := c.do(ctx, http.MethodGet, "/admin/realtime/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
