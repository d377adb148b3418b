package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Record is a human readable view of one stored key, for debugging tools.
type Record struct {
	Key    string
	Kind   string
	Detail string
	Size   int
}

// Describe decodes a raw entry according to its key prefix.
func Describe(key string, val []byte) Record {
	rec := Record{Key: key, Kind: "RAW", Size: len(val)}
	var err error
	switch {
	case strings.HasPrefix(key, userEmailPrefix):
		rec.Kind, rec.Detail = "EMAIL", string(val)
	case strings.HasPrefix(key, userPrefix):
		rec.Kind = "USER"
		u, blocked, e := decodeUser(val)
		rec.Detail, err = fmt.Sprintf("%s <%s> blocked=%d last_seen=%s",
			u.FullName, u.Email, len(blocked), formatTime(u.LastSeen)), e
	case strings.HasPrefix(key, groupMemberPrefix):
		rec.Kind = "MEMBER"
	case strings.HasPrefix(key, groupPrefix):
		rec.Kind = "GROUP"
		g, e := decodeGroup(val)
		rec.Detail, err = fmt.Sprintf("%s members=%d by=%s", g.Name, len(g.Members), g.CreatedBy), e
	case strings.HasPrefix(key, unreadPrefix):
		rec.Kind, rec.Detail = "UNREAD", string(val)
	case strings.HasPrefix(key, directPrefix), strings.HasPrefix(key, groupMsgPrefix):
		rec.Kind = "DM"
		if strings.HasPrefix(key, groupMsgPrefix) {
			rec.Kind = "GROUP_MSG"
		}
		m, e := decodeMessage(val)
		rec.Detail, err = fmt.Sprintf("from=%s read=%t lang=%s %q", m.SenderID, m.Read, m.Lang, truncate(m.Text, 60)), e
	}
	if err != nil {
		rec.Detail = "Error: " + err.Error()
	}
	return rec
}

// Dump walks every key under prefix, in key order.
func Dump(ctx context.Context, db *badger.DB, prefix string, visit func(Record)) error {
	return view(ctx, db, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			if err := item.Value(func(val []byte) error {
				visit(Describe(string(item.Key()), val))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}
