package repositories

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"my-chat-backend/domain"
	"my-chat-backend/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// markReadBatch bounds the number of messages flipped per transaction.
const markReadBatch = 500

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
	now           func() time.Time
}

// NewMessageRepository builds the message store. When limitMessages is set
// histories return at most that many of the latest messages.
func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) *MessageRepository {
	return &MessageRepository{db: db, log: log, limitMessages: limitMessages, now: time.Now}
}

// Create persists a message. Unread direct messages are also recorded in
// the unread index of their receiver.
func (r *MessageRepository) Create(ctx context.Context, msg domain.Message) (domain.Message, error) {
	if !msg.HasSingleTarget() {
		return domain.Message{}, fmt.Errorf("%w: message needs exactly one receiver or group", errors.ErrInvalidArgument)
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.now().UTC()
	}

	key := messageKey(msg)
	err := update(ctx, r.db, func(txn *badger.Txn) error {
		if err := txn.Set(key, encodeMessage(msg)); err != nil {
			return err
		}
		if msg.IsGroup() || msg.Read {
			return nil
		}
		return txn.Set(unreadKey(msg), key)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// FindConversation returns the messages exchanged by two users in both
// directions, oldest first.
func (r *MessageRepository) FindConversation(ctx context.Context, userA, userB domain.UserID) ([]domain.Message, error) {
	return r.history(ctx, conversationPrefix(userA, userB))
}

func (r *MessageRepository) FindGroupMessages(ctx context.Context, groupID domain.GroupID) ([]domain.Message, error) {
	return r.history(ctx, groupMessagesPrefix(groupID))
}

// history walks the prefix backwards from the newest key so that the
// limit keeps the latest messages, then restores chronological order.
func (r *MessageRepository) history(ctx context.Context, prefix []byte) ([]domain.Message, error) {
	messages := []domain.Message{}
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		seekKey := append(slices.Clone(prefix), '~')
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if r.limitMessages != nil && len(messages) == *r.limitMessages {
				r.log.Debug(fmt.Sprintf("Maximum of %d message reached", *r.limitMessages))
				break
			}
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			m, err := decodeMessage(raw)
			if err != nil {
				return err
			}
			messages = append(messages, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}

// MarkRead flips every unread message from sender to receiver and returns
// how many changed.
func (r *MessageRepository) MarkRead(ctx context.Context, senderID, receiverID domain.UserID, at time.Time) (int, error) {
	prefix := unreadPairPrefix(receiverID, senderID)
	total := 0
	for {
		changed, scanned, err := r.markReadBatch(ctx, prefix, at.UTC())
		total += changed
		if err != nil || scanned < markReadBatch {
			return total, err
		}
	}
}

func (r *MessageRepository) markReadBatch(ctx context.Context, prefix []byte, at time.Time) (changed, scanned int, err error) {
	err = update(ctx, r.db, func(txn *badger.Txn) error {
		changed = 0
		type pending struct{ index, message []byte }
		var batch []pending

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(batch) < markReadBatch; it.Next() {
			target, err := it.Item().ValueCopy(nil)
			if err != nil {
				it.Close()
				return err
			}
			batch = append(batch, pending{index: it.Item().KeyCopy(nil), message: target})
		}
		it.Close()
		scanned = len(batch)

		for _, p := range batch {
			if err := txn.Delete(p.index); err != nil {
				return err
			}
			raw, err := getValue(txn, p.message)
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			m, err := decodeMessage(raw)
			if err != nil {
				return err
			}
			m.Read = true
			m.ReadAt = at
			if err := txn.Set(p.message, encodeMessage(m)); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	return changed, scanned, err
}

// UnreadCountsByPeer counts the unread messages each peer sent to userID.
func (r *MessageRepository) UnreadCountsByPeer(ctx context.Context, userID domain.UserID) (map[domain.UserID]int, error) {
	counts := map[domain.UserID]int{}
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := unreadReceiverPrefix(userID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			sender, ok := senderFromUnreadKey(it.Item().Key(), prefix)
			if !ok {
				continue
			}
			counts[sender]++
		}
		return nil
	})
	return counts, err
}
