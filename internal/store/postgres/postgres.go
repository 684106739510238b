// Package postgres reads and writes chat data in the relational schema owned
// by the workspace and channel management service. Table and column names
// follow that service's conventions: quoted singular table names and
// camelCase columns.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/Tyrowin/chatd/internal/directory"
	"github.com/Tyrowin/chatd/internal/messages"
)

const (
	insertMessage = `
INSERT INTO "Message" ("channelId", "senderId", "content", "fileUrl", "fileName", "fileType")
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING "id", "createdAt"`

	selectMessages = `
SELECT m."id", m."channelId", m."senderId", u."name", m."content", m."fileUrl", m."fileName", m."fileType", m."createdAt"
FROM "Message" m
JOIN "User" u ON u."id" = m."senderId"
WHERE m."channelId" = $1
ORDER BY m."createdAt" ASC, m."id" ASC`

	selectChannelWorkspace = `SELECT "workspaceId" FROM "Channel" WHERE "id" = $1`

	selectMembership = `
SELECT EXISTS (
	SELECT 1 FROM "WorkspaceMember" WHERE "workspaceId" = $1 AND "userId" = $2
)`
)

// Store implements messages.Store and directory.Directory on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create pool")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return New(pool), nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// CreateMessage implements messages.Store. Content is stored as an empty
// string for file messages.
func (s *Store) CreateMessage(ctx context.Context, m messages.NewMessage) (messages.Message, error) {
	msg := messages.Message{
		ChannelID:  m.ChannelID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Content:    m.Content,
		FileURL:    m.FileURL,
		FileName:   m.FileName,
		FileType:   m.FileType,
	}

	err := s.pool.QueryRow(ctx, insertMessage,
		m.ChannelID,
		m.SenderID,
		m.Content,
		nullable(m.FileURL),
		nullable(m.FileName),
		nullable(m.FileType),
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return messages.Message{}, errors.Wrap(err, "insert message")
	}
	return msg, nil
}

// ListMessages implements messages.Store.
func (s *Store) ListMessages(ctx context.Context, channelID int64) ([]messages.Message, error) {
	rows, err := s.pool.Query(ctx, selectMessages, channelID)
	if err != nil {
		return nil, errors.Wrap(err, "query messages")
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (messages.Message, error) {
		var m messages.Message
		var content, fileURL, fileName, fileType pgtype.Text
		err := row.Scan(&m.ID, &m.ChannelID, &m.SenderID, &m.SenderName,
			&content, &fileURL, &fileName, &fileType, &m.CreatedAt)
		m.Content = content.String
		m.FileURL = fileURL.String
		m.FileName = fileName.String
		m.FileType = fileType.String
		return m, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan messages")
	}
	return out, nil
}

// ChannelWorkspace implements directory.Directory.
func (s *Store) ChannelWorkspace(ctx context.Context, channelID int64) (int64, error) {
	var workspaceID int64
	err := s.pool.QueryRow(ctx, selectChannelWorkspace, channelID).Scan(&workspaceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, directory.ErrNotFound
	}
	if err != nil {
		return 0, errors.Wrap(err, "query channel")
	}
	return workspaceID, nil
}

// IsWorkspaceMember implements directory.Directory.
func (s *Store) IsWorkspaceMember(ctx context.Context, userID, workspaceID int64) (bool, error) {
	var ok bool
	if err := s.pool.QueryRow(ctx, selectMembership, workspaceID, userID).Scan(&ok); err != nil {
		return false, errors.Wrap(err, "query membership")
	}
	return ok, nil
}

func nullable(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
