package util

import (
	"errors"
	"net/url"
	"path/filepath"
	"strings"
)

// MaxAvatarSize is the upload limit for profile pictures
const MaxAvatarSize = 5 << 20

var avatarExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// AvatarContentType returns the content type for an allowed avatar filename
func AvatarContentType(filename string) (string, bool) {
	ct, ok := avatarExtensions[strings.ToLower(filepath.Ext(filename))]
	return ct, ok
}

// ValidateHTTPURL checks that raw is an absolute http(s) URL
func ValidateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("url must use http or https")
	}
	if u.Host == "" {
		return errors.New("url must include a host")
	}
	return nil
}
