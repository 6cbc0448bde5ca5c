package uploads

import (
	"context"
	"encoding/json"
	"errors"
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
	song *catalog.Song
	err  error
	link string
}

func (stub *stubService) Process(_ context.Context, sourceURL string) (*catalog.Song, error) {
	stub.link = sourceURL
	return stub.song, stub.err
}

func performUpload(t *testing.T, service Service, target string) *httptest.ResponseRecorder {
	t.Helper()
	ec := echo.New()
	request := httptest.NewRequest(http.MethodGet, target, nil)
	recorder := httptest.NewRecorder()

	err := New(service).upload(ec.NewContext(request, recorder))
	require.NoError(t, err)

	return recorder
}

func Test_Upload_MissingLinkIsRejected(t *testing.T) {
	service := &stubService{}
	recorder := performUpload(t, service, "/upload/")

	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "link")
	assert.Empty(t, service.link, "pipeline must not run without a link")
}

func Test_Upload_SuccessReturnsPersistedRecord(t *testing.T) {
	song := &catalog.Song{Tags: []string{"pop", "happy"}}
	song.ID = uuid.New()
	song.FileID = "f1"
	song.ImgID = "i1"
	song.Name = "Test Song"
	song.Artist = "X"
	song.Language = "english"

	service := &stubService{song: song}
	recorder := performUpload(t, service, "/upload/?link=https://youtu.be/dQw4w9WgXcQ")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", service.link)

	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "f1", body["fileId"])
	assert.Equal(t, "i1", body["imgId"])
	assert.Equal(t, "Test Song", body["name"])
	assert.Equal(t, "X", body["artist"])
	assert.Equal(t, "english", body["language"])
	assert.Equal(t, []any{"pop", "happy"}, body["tags"])
	assert.Equal(t, float64(0), body["views"])
	assert.Equal(t, float64(0), body["likes"])
}

func Test_Upload_PipelineFailureBecomesServerError(t *testing.T) {
	service := &stubService{err: errors.New("failed to fetch thumbnail: status 404 Not Found")}
	recorder := performUpload(t, service, "/upload/?link=https://youtu.be/dQw4w9WgXcQ")

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "failed to fetch thumbnail: status 404 Not Found", body["error"])
}
