package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// ThreadQuery filters ListThreads. Empty fields are not sent.
type ThreadQuery struct {
	Tag    string
	Author string
	Query  string
	Status string
	Page
}

func (q ThreadQuery) values() map[string]string {
	return map[string]string{
		"tag":    q.Tag,
		"author": q.Author,
		"q":      q.Query,
		"status": q.Status,
		"limit":  pageParam(q.Limit),
		"offset": pageParam(q.Offset),
	}
}

type CreateThreadRequest struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags,omitempty"`
}

type CreatePostRequest struct {
	Body         string  `json:"body"`
	ParentPostID *string `json:"parent_post_id,omitempty"`
}

type ModerationRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// ListThreads returns threads by latest activity
func (c *Client) ListThreads(ctx context.Context, q ThreadQuery) (*ThreadList, error) {
	params := q.values()
	return cached(c.cache, cacheKey("threads", params), func() (*ThreadList, error) {
		var out ThreadList
		if err := c.do(ctx, http.MethodGet, "/threads", nil, &out, withQuery(params)); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// GetThread returns a thread with a page of its posts
func (c *Client) GetThread(ctx context.Context, id string, page Page) (*ThreadDetail, error) {
	params := map[string]string{"limit": pageParam(page.Limit), "offset": pageParam(page.Offset)}
	return cached(c.cache, cacheKey("threads/"+id, params), func() (*ThreadDetail, error) {
		var out ThreadDetail
		if err := c.do(ctx, http.MethodGet, "/threads/"+url.PathEscape(id), nil, &out, withQuery(params)); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

func (c *Client) CreateThread(ctx context.Context, req CreateThreadRequest) (*Thread, error) {
	var out struct {
		Thread Thread `json:"thread"`
	}
	if err := c.do(ctx, http.MethodPost, "/threads", req, &out); err != nil {
		return nil, err
	}
	c.invalidate("threads")
	return &out.Thread, nil
}

// CreatePost replies to threadID
func (c *Client) CreatePost(ctx context.Context, threadID string, req CreatePostRequest) (*Post, error) {
	var out struct {
		Post Post `json:"post"`
	}
	if err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/posts", req, &out); err != nil {
		return nil, err
	}
	c.invalidate("threads")
	return &out.Post, nil
}

// ModerateThread sets a thread's status (open, locked, archived)
func (c *Client) ModerateThread(ctx context.Context, threadID string, req ModerationRequest) (*Thread, error) {
	var out struct {
		Thread Thread `json:"thread"`
	}
	if err := c.do(ctx, http.MethodPatch, "/threads/"+url.PathEscape(threadID)+"/moderation", req, &out); err != nil {
		return nil, err
	}
	c.invalidate("threads")
	return &out.Thread, nil
}

// ModeratePost sets a post's status (visible, hidden)
func (c *Client) ModeratePost(ctx context.Context, postID string, req ModerationRequest) (*Post, error) {
	var out struct {
		Post Post `json:"post"`
	}
	if err := c.do(ctx, http.MethodPatch, "/posts/"+url.PathEscape(postID)+"/moderation", req, &out); err != nil {
		return nil, err
	}
	c.invalidate("threads/" + out.Post.ThreadID)
	return &out.Post, nil
}

func (c *Client) invalidate(prefix string) {
	if c.cache != nil {
		c.cache.Invalidate(prefix)
	}
}

func pageParam(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// cacheKey is resource plus the sorted non-empty params
func cacheKey(resource string, params map[string]string) string {
	v := url.Values{}
	for k, val := range params {
		if val != "" {
			v.Set(k, val)
		}
	}
	if len(v) == 0 {
		return resource
	}
	return resource + "?" + v.Encode()
}
