package catalog_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mbeckett/TuneVault/internal/catalog"
	"github.com/mbeckett/TuneVault/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testDbUser     = "postgres"
	testDbPassword = "postgres"
	testDbName     = "TUNEVAULT_TEST_DB"
)

// startPostgres spawns a disposable Postgres container and connects the
// database manager to it, running the embedded migrations in the process.
func startPostgres(t *testing.T) database.Manager {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping containerised database test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:14.1-alpine"),
		postgres.WithDatabase(testDbName),
		postgres.WithUsername(testDbUser),
		postgres.WithPassword(testDbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Second*30)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	manager := database.New()
	require.NoError(t, manager.Connect(database.DatabaseConfig{
		User:     testDbUser,
		Password: testDbPassword,
		Name:     testDbName,
		Host:     host,
		Port:     port.Port(),
		SslMode:  "disable",
	}))

	return manager
}

func newSong(name string, artist string, tags []string) *catalog.Song {
	song := &catalog.Song{Tags: tags}
	song.ID = uuid.New()
	song.FileID = fmt.Sprintf("file-%s", song.ID)
	song.ImgID = fmt.Sprintf("img-%s", song.ID)
	song.Name = name
	song.Artist = artist
	song.Language = "english"

	return song
}

func Test_Store_SaveAndGet(t *testing.T) {
	db := startPostgres(t)
	store := catalog.NewStore()

	song := newSong("Test Song", "X", []string{"pop", "happy"})
	require.NoError(t, store.Save(db.GetSqlxDb(), song))

	fetched, err := store.GetWithID(db.GetSqlxDb(), song.ID)
	require.NoError(t, err)

	assert.Equal(t, song.ID, fetched.ID)
	assert.Equal(t, song.FileID, fetched.FileID)
	assert.Equal(t, song.ImgID, fetched.ImgID)
	assert.Equal(t, "Test Song", fetched.Name)
	assert.Equal(t, "X", fetched.Artist)
	assert.Equal(t, "english", fetched.Language)
	assert.Equal(t, []string{"pop", "happy"}, fetched.Tags)
	assert.Equal(t, 0, fetched.Views)
	assert.Equal(t, 0, fetched.Likes)
	assert.False(t, fetched.CreatedAt.IsZero())
}

func Test_Store_SaveRejectsNilID(t *testing.T) {
	db := startPostgres(t)
	store := catalog.NewStore()

	song := newSong("Test Song", "X", nil)
	song.ID = uuid.Nil
	assert.Error(t, store.Save(db.GetSqlxDb(), song))
}

func Test_Store_NilTagsRoundTripAsEmptySlice(t *testing.T) {
	db := startPostgres(t)
	store := catalog.NewStore()

	song := newSong("Instrumental", "Y", nil)
	require.NoError(t, store.Save(db.GetSqlxDb(), song))

	fetched, err := store.GetWithID(db.GetSqlxDb(), song.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{}, fetched.Tags)
}

func Test_Store_ListReturnsNewestFirst(t *testing.T) {
	db := startPostgres(t)
	store := catalog.NewStore()

	first := newSong("First", "A", []string{"rock"})
	require.NoError(t, store.Save(db.GetSqlxDb(), first))
	time.Sleep(time.Millisecond * 50)
	second := newSong("Second", "B", []string{"pop"})
	require.NoError(t, store.Save(db.GetSqlxDb(), second))

	songs, err := store.List(db.GetSqlxDb())
	require.NoError(t, err)
	require.Len(t, songs, 2)
	assert.Equal(t, "Second", songs[0].Name)
	assert.Equal(t, "First", songs[1].Name)
}

func Test_Store_GetMissingSongReturnsNotFound(t *testing.T) {
	db := startPostgres(t)
	store := catalog.NewStore()

	_, err := store.GetWithID(db.GetSqlxDb(), uuid.New())
	assert.ErrorIs(t, err, catalog.ErrSongNotFound)
}
