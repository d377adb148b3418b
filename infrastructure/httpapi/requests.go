package httpapi

import (
	"time"

	"my-chat-backend/domain"
	"my-chat-backend/domain/event"
)

type sendMessageRequest struct {
	Text  string `json:"text" validate:"max=5000"`
	Image string `json:"image"`
}

type createGroupRequest struct {
	Name    string   `json:"name" validate:"required,max=100"`
	Members []string `json:"members" validate:"required,min=1,dive,required"`
}

type addMembersRequest struct {
	Members []string `json:"members" validate:"required,min=1,dive,required"`
}

type presenceResponse struct {
	UserID   string     `json:"userId"`
	Status   string     `json:"status"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

func toUserIDs(ids []string) []domain.UserID {
	out := make([]domain.UserID, len(ids))
	for i, id := range ids {
		out[i] = domain.UserID(id)
	}
	return out
}

func userViews(users []domain.User) []event.UserView {
	views := make([]event.UserView, len(users))
	for i, u := range users {
		views[i] = event.NewUserView(u)
	}
	return views
}

func messageViews(messages []domain.Message) []event.MessageView {
	views := make([]event.MessageView, len(messages))
	for i, m := range messages {
		views[i] = event.NewMessageView(m)
	}
	return views
}

func groupViews(groups []domain.Group) []event.GroupView {
	views := make([]event.GroupView, len(groups))
	for i, g := range groups {
		views[i] = event.NewGroupView(g, nil)
	}
	return views
}
