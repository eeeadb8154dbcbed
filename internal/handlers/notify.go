package handlers

import (
	"context"
	"fmt"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/logger"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/notifications"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/telemetry"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/util"
)

// maxMentions caps how many users one body can notify
const maxMentions = 20

// notify creates notifications without failing the request that caused them
func (h *Handlers) notify(ctx context.Context, inputs []notifications.Input) {
	if h.notifier == nil || len(inputs) == 0 {
		return
	}

	ctx, span := telemetry.Events().TraceNotify(ctx, len(inputs))
	_, err := h.notifier.Notify(ctx, inputs)
	telemetry.EndSpan(span, err)
	if err != nil {
		logger.ErrorWithFields("Failed to create notifications", err)
	}
}

// resolveMentions returns the existing users @mentioned in body
func (h *Handlers) resolveMentions(ctx context.Context, body string) []*models.User {
	usernames := util.ExtractMentions(body)
	if len(usernames) == 0 {
		return nil
	}
	if len(usernames) > maxMentions {
		usernames = usernames[:maxMentions]
	}

	users, err := h.users.GetUsersByUsernames(ctx, usernames)
	if err != nil {
		logger.WarnWithFields("Failed to resolve mentions", err)
		return nil
	}
	return users
}

func mentionInputs(actor *models.User, mentioned []*models.User, thread *models.Thread, post *models.Post) []notifications.Input {
	inputs := make([]notifications.Input, 0, len(mentioned))
	for _, u := range mentioned {
		in := notifications.Input{
			UserID:   u.ID,
			ActorID:  actor.ID,
			Type:     models.NotificationMention,
			Title:    fmt.Sprintf("%s mentioned you", actor.Username),
			ThreadID: thread.ID,
			Data: map[string]interface{}{
				"thread_title": thread.Title,
				"actor":        actor.Username,
			},
		}
		if post != nil {
			in.PostID = post.ID
			in.Body = util.Truncate(post.Body, 140)
		} else {
			in.Body = util.Truncate(thread.Title, 140)
		}
		inputs = append(inputs, in)
	}
	return inputs
}

func usernames(users []*models.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Username)
	}
	return out
}
