package handlers

import (
	"net/http"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
)

func (s *HandlersTestSuite) TestRegisterLoginRefreshLogout() {
	w := s.request(http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "Nadia@Example.com",
		"username": "nadia",
		"password": "correct-horse",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	registered := s.decode(w)
	s.Equal("Bearer", registered["token_type"])
	user := registered["user"].(map[string]interface{})
	s.Equal("nadia@example.com", user["email"])
	s.Equal("member", user["role"])
	s.NotContains(user, "password_hash")

	w = s.request(http.MethodPost, "/auth/login", "", map[string]string{
		"identifier": "NADIA",
		"password":   "correct-horse",
	})
	s.Require().Equal(http.StatusOK, w.Code)
	login := s.decode(w)
	access := login["access_token"].(string)
	refresh := login["refresh_token"].(string)

	w = s.request(http.MethodGet, "/auth/me", access, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("nadia", s.decode(w)["user"].(map[string]interface{})["username"])

	w = s.request(http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": refresh})
	s.Require().Equal(http.StatusOK, w.Code)
	rotated := s.decode(w)["refresh_token"].(string)
	s.NotEqual(refresh, rotated)

	// presenting the rotated-out token again is reuse
	w = s.request(http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": refresh})
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.request(http.MethodPost, "/auth/logout", "", map[string]string{"refresh_token": rotated})
	s.Equal(http.StatusNoContent, w.Code)
}

func (s *HandlersTestSuite) TestRegisterConflictsAndValidation() {
	s.user("taken", models.RoleMember)

	w := s.request(http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "TAKEN@example.com",
		"username": "fresh",
		"password": "password123",
	})
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("email", s.decode(w)["field"])

	w = s.request(http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "fresh@example.com",
		"username": "Taken",
		"password": "password123",
	})
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("username", s.decode(w)["field"])

	w = s.request(http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "short@example.com",
		"username": "short",
		"password": "123",
	})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	body := s.decode(w)
	s.Equal("VALIDATION_ERROR", body["code"])
	s.Equal("password", body["field"])
}

func (s *HandlersTestSuite) TestLoginFailures() {
	u, _ := s.user("karim", models.RoleMember)

	w := s.request(http.MethodPost, "/auth/login", "", map[string]string{"identifier": "karim", "password": "nope-nope"})
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("UNAUTHORIZED", s.decode(w)["code"])

	s.Require().NoError(s.db.Model(u).Update("status", models.UserStatusBanned).Error)
	w = s.request(http.MethodPost, "/auth/login", "", map[string]string{"identifier": "karim", "password": "password123"})
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *HandlersTestSuite) TestMeRequiresToken() {
	w := s.request(http.MethodGet, "/auth/me", "", nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.request(http.MethodGet, "/auth/me", "garbage", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}
