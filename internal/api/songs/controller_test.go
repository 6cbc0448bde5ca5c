package songs

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/mbeckett/TuneVault/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	songs []*catalog.Song
	err   error
}

func (stub *stubService) Songs() ([]*catalog.Song, error) {
	return stub.songs, stub.err
}

func (stub *stubService) Song(id uuid.UUID) (*catalog.Song, error) {
	for _, song := range stub.songs {
		if song.ID == id {
			return song, nil
		}
	}

	return nil, catalog.ErrSongNotFound
}

func buildSong(name string) *catalog.Song {
	song := &catalog.Song{Tags: []string{}}
	song.ID = uuid.New()
	song.Name = name

	return song
}

func Test_List_ReturnsAllRecords(t *testing.T) {
	service := &stubService{songs: []*catalog.Song{buildSong("One"), buildSong("Two")}}

	ec := echo.New()
	recorder := httptest.NewRecorder()
	err := New(service).list(ec.NewContext(httptest.NewRequest(http.MethodGet, "/songs/", nil), recorder))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, recorder.Code)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, "One", body[0]["name"])
	assert.Equal(t, "Two", body[1]["name"])
}

func Test_Get_InvalidUUIDIsRejected(t *testing.T) {
	ec := echo.New()
	recorder := httptest.NewRecorder()
	ctx := ec.NewContext(httptest.NewRequest(http.MethodGet, "/songs/not-a-uuid/", nil), recorder)
	ctx.SetParamNames("id")
	ctx.SetParamValues("not-a-uuid")

	require.NoError(t, New(&stubService{}).get(ctx))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func Test_Get_UnknownSongIsNotFound(t *testing.T) {
	ec := echo.New()
	recorder := httptest.NewRecorder()
	ctx := ec.NewContext(httptest.NewRequest(http.MethodGet, "/songs/", nil), recorder)
	ctx.SetParamNames("id")
	ctx.SetParamValues(uuid.NewString())

	require.NoError(t, New(&stubService{}).get(ctx))
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}
