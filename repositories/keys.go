package repositories

import (
	"fmt"
	"strings"

	"my-chat-backend/domain"
)

// Key layout. Identifiers are generated UUIDs and never contain ':'.
//
//	user:{id}                                  -> User record
//	user-email:{email}                         -> user id
//	group:{id}                                 -> Group record
//	group-member:{user}:{group}                -> empty
//	msg:dm:{low}|{high}:{ts}:{id}              -> Message record
//	msg:group:{group}:{ts}:{id}                -> Message record
//	msg:unread:{receiver}:{sender}:{ts}:{id}   -> key of the direct message
//
// {ts} is the creation time in unix nanoseconds padded to 19 digits so
// that lexicographic order is chronological.
const (
	userPrefix        = "user:"
	userEmailPrefix   = "user-email:"
	groupPrefix       = "group:"
	groupMemberPrefix = "group-member:"
	directPrefix      = "msg:dm:"
	groupMsgPrefix    = "msg:group:"
	unreadPrefix      = "msg:unread:"
)

func userKey(id domain.UserID) []byte {
	return []byte(userPrefix + string(id))
}

func emailKey(email string) []byte {
	return []byte(userEmailPrefix + normalizeEmail(email))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func groupKey(id domain.GroupID) []byte {
	return []byte(groupPrefix + string(id))
}

func groupMemberKey(userID domain.UserID, groupID domain.GroupID) []byte {
	return []byte(groupMemberPrefix + string(userID) + ":" + string(groupID))
}

func groupMembershipPrefix(userID domain.UserID) []byte {
	return []byte(groupMemberPrefix + string(userID) + ":")
}

// conversationID is the same for both directions of a pair.
func conversationID(a, b domain.UserID) string {
	if b < a {
		a, b = b, a
	}
	return string(a) + "|" + string(b)
}

func conversationPrefix(a, b domain.UserID) []byte {
	return []byte(directPrefix + conversationID(a, b) + ":")
}

func groupMessagesPrefix(groupID domain.GroupID) []byte {
	return []byte(groupMsgPrefix + string(groupID) + ":")
}

func messageKey(m domain.Message) []byte {
	var prefix []byte
	if m.IsGroup() {
		prefix = groupMessagesPrefix(m.GroupID)
	} else {
		prefix = conversationPrefix(m.SenderID, m.ReceiverID)
	}
	return fmt.Appendf(prefix, "%019d:%s", m.CreatedAt.UnixNano(), m.ID)
}

func unreadPairPrefix(receiver, sender domain.UserID) []byte {
	return []byte(unreadPrefix + string(receiver) + ":" + string(sender) + ":")
}

func unreadReceiverPrefix(receiver domain.UserID) []byte {
	return []byte(unreadPrefix + string(receiver) + ":")
}

func unreadKey(m domain.Message) []byte {
	return fmt.Appendf(unreadPairPrefix(m.ReceiverID, m.SenderID), "%019d:%s", m.CreatedAt.UnixNano(), m.ID)
}

// senderFromUnreadKey extracts {sender} from an unread index key.
func senderFromUnreadKey(key []byte, receiverPrefix []byte) (domain.UserID, bool) {
	rest, ok := strings.CutPrefix(string(key), string(receiverPrefix))
	if !ok {
		return "", false
	}
	sender, _, ok := strings.Cut(rest, ":")
	return domain.UserID(sender), ok && sender != ""
}
