package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
)

// UpdateProfileRequest changes only the non-nil fields
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	Location    *string `json:"location,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

// GetUser returns a public profile
func (c *Client) GetUser(ctx context.Context, username string) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(username), nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPatch, "/users/me", req, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// UploadAvatar sends an image as the profile picture. The image is
// buffered so the upload can be replayed after a session refresh.
func (c *Client) UploadAvatar(ctx context.Context, filename string, image io.Reader) (*User, error) {
	data, err := io.ReadAll(image)
	if err != nil {
		return nil, err
	}

	var out struct {
		User User `json:"user"`
	}
	err = c.do(ctx, http.MethodPost, "/users/me/avatar", nil, &out, func(r *resty.Request) {
		r.SetFileReader("avatar", filename, bytes.NewReader(data))
	})
	if err != nil {
		return nil, err
	}
	return &out.User, nil
}
