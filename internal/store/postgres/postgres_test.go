package postgres

import (
	"context"
	_ "embed"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/chatd/internal/directory"
	"github.com/Tyrowin/chatd/internal/messages"
)

//go:embed testdata/schema.sql
var schema string

type fixture struct {
	store     *Store
	ada, bob  int64
	workspace int64
	general   int64
	other     int64
}

// setupTestDB connects to TEST_DATABASE_URL, creates the schema and seeds
// two users, a workspace with one member and two channels. It skips when no
// database is reachable.
func setupTestDB(t *testing.T) fixture {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Skipf("Skipping test: database not available: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("Skipping test: database ping failed: %v", err)
	}
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, schema)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `TRUNCATE "Message", "Channel", "WorkspaceMember", "Workspace", "User" RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	var f fixture
	f.store = New(pool)
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO "User" ("name", "email") VALUES ('Ada', 'ada@example.com') RETURNING "id"`).Scan(&f.ada))
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO "User" ("name", "email") VALUES ('Bob', 'bob@example.com') RETURNING "id"`).Scan(&f.bob))
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO "Workspace" ("name", "ownerId") VALUES ('acme', $1) RETURNING "id"`, f.ada).Scan(&f.workspace))
	_, err = pool.Exec(ctx,
		`INSERT INTO "WorkspaceMember" ("userId", "workspaceId", "role") VALUES ($1, $2, 'owner')`, f.ada, f.workspace)
	require.NoError(t, err)
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO "Channel" ("name", "workspaceId") VALUES ('general', $1) RETURNING "id"`, f.workspace).Scan(&f.general))
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO "Channel" ("name", "workspaceId") VALUES ('random', $1) RETURNING "id"`, f.workspace).Scan(&f.other))
	return f
}

func TestStore_CreateAndList(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	a, err := f.store.CreateMessage(ctx, messages.NewMessage{ChannelID: f.general, SenderID: f.ada, SenderName: "Ada", Content: "A"})
	require.NoError(t, err)
	assert.NotZero(t, a.ID)
	assert.False(t, a.CreatedAt.IsZero())

	_, err = f.store.CreateMessage(ctx, messages.NewMessage{
		ChannelID: f.general,
		SenderID:  f.bob,
		FileURL:   "https://cdn.example/x.png",
		FileName:  "x.png",
		FileType:  "image/png",
	})
	require.NoError(t, err)
	_, err = f.store.CreateMessage(ctx, messages.NewMessage{ChannelID: f.other, SenderID: f.ada, Content: "elsewhere"})
	require.NoError(t, err)

	got, err := f.store.ListMessages(ctx, f.general)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "A", got[0].Content)
	assert.Equal(t, "Ada", got[0].SenderName)
	assert.Empty(t, got[0].FileURL)

	assert.Equal(t, "", got[1].Content)
	assert.Equal(t, "Bob", got[1].SenderName)
	assert.Equal(t, "https://cdn.example/x.png", got[1].FileURL)
	assert.Equal(t, "image/png", got[1].FileType)
}

func TestStore_CreateUnknownChannelFails(t *testing.T) {
	f := setupTestDB(t)

	_, err := f.store.CreateMessage(context.Background(), messages.NewMessage{ChannelID: 9999, SenderID: f.ada, Content: "x"})
	assert.Error(t, err)
}

func TestStore_Directory(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	ws, err := f.store.ChannelWorkspace(ctx, f.general)
	require.NoError(t, err)
	assert.Equal(t, f.workspace, ws)

	_, err = f.store.ChannelWorkspace(ctx, 9999)
	assert.ErrorIs(t, err, directory.ErrNotFound)

	ok, err := f.store.IsWorkspaceMember(ctx, f.ada, f.workspace)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.store.IsWorkspaceMember(ctx, f.bob, f.workspace)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNullable(t *testing.T) {
	assert.False(t, nullable("").Valid)
	v := nullable("x")
	assert.True(t, v.Valid)
	assert.Equal(t, "x", v.String)
}
