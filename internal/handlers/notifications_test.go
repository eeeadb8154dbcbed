package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/notifications"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/testutil"
)

func (s *HandlersTestSuite) seedNotifications(userID string, n int) []*models.Notification {
	inputs := make([]notifications.Input, 0, n)
	for i := 0; i < n; i++ {
		actor := testutil.CreateUser(s.T(), s.db, fmt.Sprintf("actor_%s_%d", userID[:8], i), models.RoleMember)
		inputs = append(inputs, notifications.Input{
			UserID:  userID,
			ActorID: actor.ID,
			Type:    models.NotificationSystem,
			Title:   "hello",
		})
	}
	// one Notify call per recipient keeps only the first input, so send them one by one
	var out []*models.Notification
	for _, in := range inputs {
		created, err := s.handlers.notifier.Notify(context.Background(), []notifications.Input{in})
		s.Require().NoError(err)
		out = append(out, created...)
	}
	return out
}

func (s *HandlersTestSuite) TestListAndMarkNotifications() {
	u, token := s.user("reader", models.RoleMember)
	created := s.seedNotifications(u.ID, 3)
	s.Require().Len(created, 3)

	w := s.request(http.MethodGet, "/notifications?limit=2", token, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	s.Len(body["notifications"], 2)
	meta := body["meta"].(map[string]interface{})
	s.Equal(float64(3), meta["total"])
	s.Equal(float64(3), meta["unread"])

	w = s.request(http.MethodPatch, "/notifications/"+created[0].ID, token, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(float64(2), s.decode(w)["unread"])

	w = s.request(http.MethodGet, "/notifications?unread=true", token, nil)
	s.Len(s.decode(w)["notifications"], 2)

	w = s.request(http.MethodPatch, "/notifications", token, map[string]interface{}{"ids": []string{created[1].ID}})
	s.Require().Equal(http.StatusOK, w.Code)
	res := s.decode(w)
	s.Equal(float64(1), res["updated"])
	s.Equal(float64(1), res["unread"])

	w = s.request(http.MethodPatch, "/notifications", token, map[string]interface{}{"all": true})
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(float64(0), s.decode(w)["unread"])
}

func (s *HandlersTestSuite) TestMarkNotificationsValidation() {
	u, token := s.user("reader", models.RoleMember)
	other, _ := s.user("other", models.RoleMember)
	mine := s.seedNotifications(u.ID, 1)
	theirs := s.seedNotifications(other.ID, 1)

	w := s.request(http.MethodPatch, "/notifications", token, map[string]interface{}{})
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w = s.request(http.MethodPatch, "/notifications", token, map[string]interface{}{"ids": []string{mine[0].ID}, "all": true})
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w = s.request(http.MethodPatch, "/notifications/"+theirs[0].ID, token, nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.request(http.MethodGet, "/notifications", "", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}
