package event

import (
	"time"

	"my-chat-backend/domain"
)

// Views are the JSON shapes shared by socket events and the HTTP API.
// Identifiers use "_id" to stay compatible with existing web clients.

type UserView struct {
	ID         string     `json:"_id"`
	FullName   string     `json:"fullName,omitempty"`
	Email      string     `json:"email,omitempty"`
	ProfilePic string     `json:"profilePic,omitempty"`
	LastSeen   *time.Time `json:"lastSeen,omitempty"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
}

func NewUserView(u domain.User) UserView {
	return UserView{
		ID:         string(u.ID),
		FullName:   u.FullName,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		LastSeen:   optionalTime(u.LastSeen),
		CreatedAt:  optionalTime(u.CreatedAt),
	}
}

type MessageView struct {
	ID         string     `json:"_id"`
	SenderID   string     `json:"senderId"`
	ReceiverID string     `json:"receiverId,omitempty"`
	GroupID    string     `json:"groupId,omitempty"`
	Text       string     `json:"text,omitempty"`
	Image      string     `json:"image,omitempty"`
	Lang       string     `json:"lang,omitempty"`
	Read       bool       `json:"read"`
	ReadAt     *time.Time `json:"readAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func NewMessageView(m domain.Message) MessageView {
	return MessageView{
		ID:         m.ID.String(),
		SenderID:   string(m.SenderID),
		ReceiverID: string(m.ReceiverID),
		GroupID:    string(m.GroupID),
		Text:       m.Text,
		Image:      m.ImageURL,
		Lang:       m.Lang,
		Read:       m.Read,
		ReadAt:     optionalTime(m.ReadAt),
		CreatedAt:  m.CreatedAt,
	}
}

type GroupView struct {
	ID        string     `json:"_id"`
	Name      string     `json:"name"`
	Members   []UserView `json:"members"`
	CreatedBy string     `json:"createdBy"`
	CreatedAt time.Time  `json:"createdAt"`
	GroupPic  string     `json:"groupPic"`
}

// NewGroupView fills members from profiles when known, ids otherwise.
func NewGroupView(g domain.Group, profiles []domain.User) GroupView {
	byID := make(map[domain.UserID]domain.User, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	members := make([]UserView, 0, len(g.Members))
	for _, id := range g.Members {
		if p, ok := byID[id]; ok {
			members = append(members, NewUserView(p))
			continue
		}
		members = append(members, UserView{ID: string(id)})
	}
	return GroupView{
		ID:        string(g.ID),
		Name:      g.Name,
		Members:   members,
		CreatedBy: string(g.CreatedBy),
		CreatedAt: g.CreatedAt,
		GroupPic:  g.Picture,
	}
}

type LastSeenPayload struct {
	UserID   string    `json:"userId"`
	LastSeen time.Time `json:"lastSeen"`
}

type TypingPayload struct {
	SenderID string `json:"senderId"`
}

type GroupTypingPayload struct {
	GroupID string   `json:"groupId"`
	User    UserView `json:"user"`
}

type GroupStopTypingPayload struct {
	GroupID  string `json:"groupId"`
	SenderID string `json:"senderId"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
