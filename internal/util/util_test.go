package util

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestExtractMentions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"single", "hello @Rahim!", []string{"rahim"}},
		{"dedupe", "@karim and @KARIM, again", []string{"karim"}},
		{"too short", "@ab is ignored", nil},
		{"invalid chars", "@bad-name stays out", nil},
		{"several", "@one_1 @two_2 @three", []string{"one_1", "two_2", "three"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractMentions(tt.content))
		})
	}
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"go", "forum"}, NormalizeTags([]string{" Go", "#forum", "go", ""}))
	assert.Empty(t, NormalizeTags(nil))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcd...", Truncate("abcdefghij", 7))
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query  string
		limit  int
		offset int
	}{
		{"", DefaultPageLimit, 0},
		{"?limit=5&offset=10", 5, 10},
		{"?limit=1000", MaxPageLimit, 0},
		{"?limit=-1&offset=-4", DefaultPageLimit, 0},
		{"?limit=abc", DefaultPageLimit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/threads"+tt.query, nil)

			p := ParsePagination(c)
			assert.Equal(t, tt.limit, p.Limit)
			assert.Equal(t, tt.offset, p.Offset)
			assert.Equal(t, int64(3), p.Meta(3).Total)
		})
	}
}

func TestRespondError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/threads/x", nil)

	RespondError(c, errors.ValidationError("title", "title is required"))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.Equal(t, "title", body["field"])
}

func TestRespondErrorHidesInternalErrors(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	RespondError(c, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}

func TestHandleDBError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	assert.False(t, HandleDBError(c, nil, "thread"))
	assert.True(t, HandleDBError(c, gorm.ErrRecordNotFound, "thread"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetUserFromContextWithoutUser(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	user, ok := GetUserFromContext(c)
	assert.False(t, ok)
	assert.Nil(t, user)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestValidators(t *testing.T) {
	assert.True(t, IsValidUsername("forum_fan"))
	assert.False(t, IsValidUsername("no spaces"))

	ct, ok := AvatarContentType("me.PNG")
	assert.True(t, ok)
	assert.Equal(t, "image/png", ct)
	_, ok = AvatarContentType("me.exe")
	assert.False(t, ok)

	assert.NoError(t, ValidateHTTPURL("https://cdn.example.com/a.png"))
	assert.Error(t, ValidateHTTPURL("ftp://x"))
	assert.Error(t, ValidateHTTPURL("https://"))
}
