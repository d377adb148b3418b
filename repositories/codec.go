package repositories

import (
	"fmt"
	"slices"
	"time"

	"my-chat-backend/domain"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of proto/storage.proto.
const (
	userID           protowire.Number = 1
	userFullName     protowire.Number = 2
	userEmail        protowire.Number = 3
	userProfilePic   protowire.Number = 4
	userPasswordHash protowire.Number = 5
	userCreatedAt    protowire.Number = 6
	userLastSeen     protowire.Number = 7
	userBlocked      protowire.Number = 8

	groupID        protowire.Number = 1
	groupName      protowire.Number = 2
	groupMembers   protowire.Number = 3
	groupCreatedBy protowire.Number = 4
	groupCreatedAt protowire.Number = 5
	groupPicture   protowire.Number = 6

	messageID         protowire.Number = 1
	messageSenderID   protowire.Number = 2
	messageReceiverID protowire.Number = 3
	messageGroupID    protowire.Number = 4
	messageText       protowire.Number = 5
	messageImageURL   protowire.Number = 6
	messageLang       protowire.Number = 7
	messageRead       protowire.Number = 8
	messageReadAt     protowire.Number = 9
	messageCreatedAt  protowire.Number = 10
)

type recordWriter struct {
	buf []byte
}

func (w *recordWriter) string(num protowire.Number, v string) {
	if v == "" {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
	w.buf = protowire.AppendString(w.buf, v)
}

func (w *recordWriter) repeated(num protowire.Number, vs []string) {
	for _, v := range vs {
		w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
		w.buf = protowire.AppendString(w.buf, v)
	}
}

func (w *recordWriter) int64(num protowire.Number, v int64) {
	if v == 0 {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, uint64(v))
}

func (w *recordWriter) bool(num protowire.Number, v bool) {
	if !v {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, protowire.EncodeBool(v))
}

func (w *recordWriter) time(num protowire.Number, t time.Time) {
	if t.IsZero() {
		return
	}
	w.int64(num, t.UnixNano())
}

type field struct {
	num    protowire.Number
	bytes  []byte
	varint uint64
}

func (f field) string() string { return string(f.bytes) }
func (f field) bool() bool     { return protowire.DecodeBool(f.varint) }
func (f field) time() time.Time {
	return time.Unix(0, int64(f.varint)).UTC()
}

// readRecord walks the fields of an encoded record. Unknown fields and
// wire types are skipped.
func readRecord(b []byte, visit func(f field)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		f := field{num: num}
		switch typ {
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		visit(f)
	}
	return nil
}

func encodeUser(u domain.User, blocked domain.BlockList) []byte {
	ids := make([]string, 0, len(blocked))
	for id := range blocked {
		ids = append(ids, string(id))
	}
	slices.Sort(ids)

	w := &recordWriter{}
	w.string(userID, string(u.ID))
	w.string(userFullName, u.FullName)
	w.string(userEmail, u.Email)
	w.string(userProfilePic, u.ProfilePic)
	w.string(userPasswordHash, u.PasswordHash)
	w.time(userCreatedAt, u.CreatedAt)
	w.time(userLastSeen, u.LastSeen)
	w.repeated(userBlocked, ids)
	return w.buf
}

func decodeUser(b []byte) (domain.User, domain.BlockList, error) {
	var u domain.User
	blocked := domain.NewBlockList()
	err := readRecord(b, func(f field) {
		switch f.num {
		case userID:
			u.ID = domain.UserID(f.string())
		case userFullName:
			u.FullName = f.string()
		case userEmail:
			u.Email = f.string()
		case userProfilePic:
			u.ProfilePic = f.string()
		case userPasswordHash:
			u.PasswordHash = f.string()
		case userCreatedAt:
			u.CreatedAt = f.time()
		case userLastSeen:
			u.LastSeen = f.time()
		case userBlocked:
			blocked[domain.UserID(f.string())] = struct{}{}
		}
	})
	if err != nil {
		return domain.User{}, nil, fmt.Errorf("decode user: %w", err)
	}
	return u, blocked, nil
}

func encodeGroup(g domain.Group) []byte {
	members := make([]string, len(g.Members))
	for i, m := range g.Members {
		members[i] = string(m)
	}
	w := &recordWriter{}
	w.string(groupID, string(g.ID))
	w.string(groupName, g.Name)
	w.repeated(groupMembers, members)
	w.string(groupCreatedBy, string(g.CreatedBy))
	w.time(groupCreatedAt, g.CreatedAt)
	w.string(groupPicture, g.Picture)
	return w.buf
}

func decodeGroup(b []byte) (domain.Group, error) {
	var g domain.Group
	err := readRecord(b, func(f field) {
		switch f.num {
		case groupID:
			g.ID = domain.GroupID(f.string())
		case groupName:
			g.Name = f.string()
		case groupMembers:
			g.Members = append(g.Members, domain.UserID(f.string()))
		case groupCreatedBy:
			g.CreatedBy = domain.UserID(f.string())
		case groupCreatedAt:
			g.CreatedAt = f.time()
		case groupPicture:
			g.Picture = f.string()
		}
	})
	if err != nil {
		return domain.Group{}, fmt.Errorf("decode group: %w", err)
	}
	return g, nil
}

func encodeMessage(m domain.Message) []byte {
	w := &recordWriter{}
	w.string(messageID, m.ID.String())
	w.string(messageSenderID, string(m.SenderID))
	w.string(messageReceiverID, string(m.ReceiverID))
	w.string(messageGroupID, string(m.GroupID))
	w.string(messageText, m.Text)
	w.string(messageImageURL, m.ImageURL)
	w.string(messageLang, m.Lang)
	w.bool(messageRead, m.Read)
	w.time(messageReadAt, m.ReadAt)
	w.time(messageCreatedAt, m.CreatedAt)
	return w.buf
}

func decodeMessage(b []byte) (domain.Message, error) {
	var m domain.Message
	var rawID string
	err := readRecord(b, func(f field) {
		switch f.num {
		case messageID:
			rawID = f.string()
		case messageSenderID:
			m.SenderID = domain.UserID(f.string())
		case messageReceiverID:
			m.ReceiverID = domain.UserID(f.string())
		case messageGroupID:
			m.GroupID = domain.GroupID(f.string())
		case messageText:
			m.Text = f.string()
		case messageImageURL:
			m.ImageURL = f.string()
		case messageLang:
			m.Lang = f.string()
		case messageRead:
			m.Read = f.bool()
		case messageReadAt:
			m.ReadAt = f.time()
		case messageCreatedAt:
			m.CreatedAt = f.time()
		}
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("decode message: %w", err)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("decode message id: %w", err)
	}
	m.ID = id
	return m, nil
}
