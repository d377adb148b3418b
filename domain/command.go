package domain

type SendDirectCommand struct {
	SenderID   UserID
	ReceiverID UserID
	Text       string
	Image      []byte
}

type SendGroupCommand struct {
	SenderID UserID
	GroupID  GroupID
	Text     string
	Image    []byte
}

type CreateGroupCommand struct {
	CreatorID UserID
	Name      string
	MemberIDs []UserID
}

type AddMembersCommand struct {
	ActorID UserID
	GroupID GroupID
	UserIDs []UserID
}
