package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/mbeckett/TuneVault/internal/database"
	"github.com/mbeckett/TuneVault/pkg/logger"
)

var ErrSongNotFound = errors.New("song does not exist")

var log = logger.Get("CatalogStore")

type (
	songBase struct {
		ID        uuid.UUID `db:"id"`
		FileID    string    `db:"file_id"`
		ImgID     string    `db:"img_id"`
		Name      string    `db:"name"`
		Artist    string    `db:"artist"`
		Language  string    `db:"language"`
		Views     int       `db:"views"`
		Likes     int       `db:"likes"`
		CreatedAt time.Time `db:"created_at"`
	}

	// songModel is the songs table row shape. Tags are stored in a jsonb
	// column; the JsonColumn container is hidden from the public API of
	// this store to prevent breakages if the column type changes.
	songModel struct {
		songBase
		Tags database.JsonColumn[[]string] `db:"tags"`
	}

	// Song is the external/public API for the catalog row. A Song is
	// written exactly once per successful upload pipeline; no update
	// path exists.
	Song struct {
		songBase
		Tags []string
	}

	Store struct{}
)

func NewStore() *Store {
	return &Store{}
}

// Save inserts the provided song. The song's ID must be populated by the
// caller; the catalog never generates identity on behalf of the pipeline.
func (store *Store) Save(db database.Queryable, song *Song) error {
	if song.ID == uuid.Nil {
		return errors.New("cannot save song with nil ID")
	}

	tags := song.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err := db.Exec(db.Rebind(`
		INSERT INTO songs(id, file_id, img_id, name, artist, language, tags, views, likes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, current_timestamp)
	`), song.ID, song.FileID, song.ImgID, song.Name, song.Artist, song.Language, database.NewJsonColumn(&tags), song.Views, song.Likes)
	if err != nil {
		return fmt.Errorf("failed to insert song: %w", err)
	}

	log.Debugf("Saved song %s (%s)\n", song.ID, song.Name)
	return nil
}

func (store *Store) List(db database.Queryable) ([]*Song, error) {
	query, args, err := selectSongBuilder().OrderBy("songs.created_at DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct list songs query: %w", err)
	}

	var results []songModel
	if err := db.Select(&results, db.Rebind(query), args...); err != nil {
		return nil, err
	}

	output := make([]*Song, len(results))
	for k, v := range results {
		output[k] = songModelToSong(&v)
	}

	return output, nil
}

func (store *Store) GetWithID(db database.Queryable, id uuid.UUID) (*Song, error) {
	query, args, err := selectSongBuilder().Where("songs.id=?", id).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct select song query: %w", err)
	}

	var song songModel
	if err := db.Get(&song, db.Rebind(query), args...); err != nil {
		return nil, ErrSongNotFound
	}

	return songModelToSong(&song), nil
}

func selectSongBuilder() squirrel.SelectBuilder {
	return squirrel.
		Select("id", "file_id", "img_id", "name", "artist", "language", "tags", "views", "likes", "created_at").
		From("songs")
}

func songModelToSong(model *songModel) *Song {
	var tags []string
	if t := model.Tags.Get(); t != nil {
		tags = *t
	} else {
		tags = []string{}
	}

	return &Song{
		songBase: model.songBase,
		Tags:     tags,
	}
}
