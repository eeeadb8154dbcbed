package client

import (
	"context"
	"net/http"
	"net/url"
)

// ListNotifications returns the signed-in user's notifications, newest first
func (c *Client) ListNotifications(ctx context.Context, unreadOnly bool, page Page) (*NotificationList, error) {
	params := map[string]string{"limit": pageParam(page.Limit), "offset": pageParam(page.Offset)}
	if unreadOnly {
		params["unread"] = "true"
	}
	return cached(c.cache, cacheKey("notifications", params), func() (*NotificationList, error) {
		var out NotificationList
		if err := c.do(ctx, http.MethodGet, "/notifications", nil, &out, withQuery(params)); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// MarkNotificationsRead marks ids as read
func (c *Client) MarkNotificationsRead(ctx context.Context, ids []string) (*MarkResult, error) {
	return c.mark(ctx, map[string]interface{}{"ids": ids})
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) (*MarkResult, error) {
	return c.mark(ctx, map[string]interface{}{"all": true})
}

func (c *Client) mark(ctx context.Context, body map[string]interface{}) (*MarkResult, error) {
	var out MarkResult
	if err := c.do(ctx, http.MethodPatch, "/notifications", body, &out); err != nil {
		return nil, err
	}
	c.invalidate("notifications")
	return &out, nil
}

// MarkNotificationRead marks one notification and returns it with the unread count
func (c *Client) MarkNotificationRead(ctx context.Context, id string) (*Notification, int64, error) {
	var out struct {
		Notification Notification `json:"notification"`
		Unread       int64        `json:"unread"`
	}
	if err := c.do(ctx, http.MethodPatch, "/notifications/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, 0, err
	}
	c.invalidate("notifications")
	return &out.Notification, out.Unread, nil
}
