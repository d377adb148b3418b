package domain

// BlockList is the set of users one user has blocked.
type BlockList map[UserID]struct{}

func NewBlockList(ids ...UserID) BlockList {
	list := make(BlockList, len(ids))
	for _, id := range ids {
		list[id] = struct{}{}
	}
	return list
}

func (b BlockList) Has(id UserID) bool {
	_, ok := b[id]
	return ok
}

func (b BlockList) IDs() []UserID {
	ids := make([]UserID, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	return ids
}

// CanDeliver is false when either side blocked the other.
func CanDeliver(sender, recipient UserID, senderBlocks, recipientBlocks BlockList) bool {
	return !senderBlocks.Has(recipient) && !recipientBlocks.Has(sender)
}

// FilterRecipients keeps the members the sender is allowed to reach.
// lists must hold a block list for the sender and every member; a missing
// entry counts as an empty list.
func FilterRecipients(sender UserID, members []UserID, lists map[UserID]BlockList) []UserID {
	allowed := make([]UserID, 0, len(members))
	for _, member := range members {
		if CanDeliver(sender, member, lists[sender], lists[member]) {
			allowed = append(allowed, member)
		}
	}
	return allowed
}

// FirstBlockedPair returns the first pair of members with a block in either
// direction.
func FirstBlockedPair(members []UserID, lists map[UserID]BlockList) (UserID, UserID, bool) {
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			a, b := members[i], members[j]
			if !CanDeliver(a, b, lists[a], lists[b]) {
				return a, b, true
			}
		}
	}
	return "", "", false
}
