package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
)

func (s *HandlersTestSuite) TestGetUserProfileIsPublic() {
	s.user("Rahim", models.RoleMember)

	w := s.request(http.MethodGet, "/users/rahim", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	user := s.decode(w)["user"].(map[string]interface{})
	s.Equal("Rahim", user["username"])
	s.NotContains(user, "email")
	s.NotContains(user, "status")

	w = s.request(http.MethodGet, "/users/nobody", "", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlersTestSuite) TestUpdateMyProfile() {
	_, token := s.user("rahim", models.RoleMember)

	w := s.request(http.MethodPatch, "/users/me", token, map[string]string{
		"display_name": "  Rahim Uddin ",
		"bio":          "Tea and code",
		"location":     "Dhaka",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	user := s.decode(w)["user"].(map[string]interface{})
	s.Equal("Rahim Uddin", user["display_name"])
	s.Equal("Tea and code", user["bio"])
	s.Equal("rahim@example.com", user["email"])

	w = s.request(http.MethodPatch, "/users/me", token, map[string]string{"avatar_url": "not a url"})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("avatar_url", s.decode(w)["field"])

	w = s.request(http.MethodPatch, "/users/me", token, map[string]string{"display_name": "   "})
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	long := make([]byte, 501)
	for i := range long {
		long[i] = 'a'
	}
	w = s.request(http.MethodPatch, "/users/me", token, map[string]string{"bio": string(long)})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("bio", s.decode(w)["field"])
}

func (s *HandlersTestSuite) avatarRequest(token, filename string, content []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("avatar", filename)
	s.Require().NoError(err)
	_, err = part.Write(content)
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/users/me/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlersTestSuite) TestUploadAvatar() {
	u, token := s.user("rahim", models.RoleMember)

	w := s.avatarRequest(token, "me.png", []byte("png-bytes"))
	s.Equal(http.StatusServiceUnavailable, w.Code)

	uploader := &fakeUploader{}
	s.handlers.SetAvatarUploader(uploader)

	w = s.avatarRequest(token, "me.exe", []byte("nope"))
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal(0, uploader.calls)

	w = s.avatarRequest(token, "me.png", []byte("png-bytes"))
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal(1, uploader.calls)
	user := s.decode(w)["user"].(map[string]interface{})
	s.Equal("https://cdn.example.com/avatars/"+u.ID+"/avatar.png", user["avatar_url"])
}
