package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"my-chat-backend/domain"

	"github.com/blugelabs/bluge"
)

const (
	indexFieldName  = "full_name"
	indexFieldEmail = "email"
)

// UserIndex is the full text index used by the user search.
type UserIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewUserIndex(writer *bluge.Writer, log *slog.Logger) *UserIndex {
	return &UserIndex{writer: writer, log: log}
}

// Index inserts or replaces the document of a user.
func (i *UserIndex) Index(u domain.User) error {
	doc := bluge.NewDocument(string(u.ID)).
		AddField(bluge.NewTextField(indexFieldName, u.FullName)).
		AddField(bluge.NewTextField(indexFieldEmail, u.Email))
	return i.writer.Update(doc.ID(), doc)
}

// Search matches every term of text as a prefix of the name or the email
// and returns user ids by relevance.
func (i *UserIndex) Search(ctx context.Context, text string, limit int) ([]domain.UserID, error) {
	terms := strings.Fields(strings.ToLower(text))
	if len(terms) == 0 {
		return nil, nil
	}

	query := bluge.NewBooleanQuery()
	for _, term := range terms {
		query.AddMust(bluge.NewBooleanQuery().
			AddShould(
				bluge.NewPrefixQuery(term).SetField(indexFieldName),
				bluge.NewPrefixQuery(term).SetField(indexFieldEmail),
			).
			SetMinShould(1))
	}

	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("open index reader: %w", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Index reader not closed", "error", err)
		}
	}()

	matches, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	var ids []domain.UserID
	match, err := matches.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, domain.UserID(value))
				return false
			}
			return true
		})
		if err != nil {
			break
		}
		match, err = matches.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("read search results: %w", err)
	}
	return ids, nil
}
