// Package dto holds request bodies and response shapes for the HTTP API.
package dto

import (
	"time"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
)

// UserSummary is embedded in threads, posts and notifications
type UserSummary struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// UserPublic is the profile anyone can see
type UserPublic struct {
	UserSummary
	Bio         string      `json:"bio"`
	Location    string      `json:"location"`
	Role        models.Role `json:"role"`
	ThreadCount int         `json:"thread_count"`
	PostCount   int         `json:"post_count"`
	CreatedAt   time.Time   `json:"created_at"`
}

// UserPrivate is returned to the account owner and to admins
type UserPrivate struct {
	UserPublic
	Email        string            `json:"email"`
	Status       models.UserStatus `json:"status"`
	LastActiveAt *time.Time        `json:"last_active_at,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// UpdateProfileRequest for PATCH /users/me. Nil fields are left unchanged.
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name" binding:"omitempty,min=1,max=50"`
	Bio         *string `json:"bio" binding:"omitempty,max=500"`
	Location    *string `json:"location" binding:"omitempty,max=100"`
	AvatarURL   *string `json:"avatar_url" binding:"omitempty,url"`
}

// Fields returns the column updates carried by the request
func (r UpdateProfileRequest) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if r.DisplayName != nil {
		fields["display_name"] = *r.DisplayName
	}
	if r.Bio != nil {
		fields["bio"] = *r.Bio
	}
	if r.Location != nil {
		fields["location"] = *r.Location
	}
	if r.AvatarURL != nil {
		fields["avatar_url"] = *r.AvatarURL
	}
	return fields
}

// AdminUpdateUserRequest for PATCH /admin/users/:id
type AdminUpdateUserRequest struct {
	Role   *models.Role       `json:"role"`
	Status *models.UserStatus `json:"status"`
	Reason string             `json:"reason" binding:"max=500"`
}

func ToUserSummary(user *models.User) *UserSummary {
	if user == nil {
		return nil
	}
	return &UserSummary{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
	}
}

func ToUserPublic(user *models.User) *UserPublic {
	if user == nil {
		return nil
	}
	return &UserPublic{
		UserSummary: *ToUserSummary(user),
		Bio:         user.Bio,
		Location:    user.Location,
		Role:        user.Role,
		ThreadCount: user.ThreadCount,
		PostCount:   user.PostCount,
		CreatedAt:   user.CreatedAt,
	}
}

// ToUserPrivate includes email and account standing; never use it for other users' profiles
func ToUserPrivate(user *models.User) *UserPrivate {
	if user == nil {
		return nil
	}
	return &UserPrivate{
		UserPublic:   *ToUserPublic(user),
		Email:        user.Email,
		Status:       user.Status,
		LastActiveAt: user.LastActiveAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func ToUserPrivateList(users []*models.User) []*UserPrivate {
	out := make([]*UserPrivate, 0, len(users))
	for _, u := range users {
		out = append(out, ToUserPrivate(u))
	}
	return out
}
