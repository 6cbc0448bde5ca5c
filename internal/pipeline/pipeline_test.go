package pipeline_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/mbeckett/TuneVault/internal/catalog"
	"github.com/mbeckett/TuneVault/internal/database"
	"github.com/mbeckett/TuneVault/internal/event"
	"github.com/mbeckett/TuneVault/internal/media"
	"github.com/mbeckett/TuneVault/internal/pipeline"
	"github.com/mbeckett/TuneVault/internal/tagging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errExpected = errors.New("test: expected error")

type stubFetcher struct {
	artifact *media.Artifact
	err      error
}

func (stub *stubFetcher) Fetch(_ context.Context, _ string) (*media.Artifact, error) {
	return stub.artifact, stub.err
}

// stubStorage hands out "f1" for the first upload and "i1" for the second,
// recording every call so tests can assert on ordering and compensation.
type stubStorage struct {
	ensureErr     error
	uploadErrOn   int
	linkErr       error
	uploads       []string
	deleted       []string
	ensuredNames  []string
	uploadCounter int
}

func (stub *stubStorage) EnsureFolder(_ context.Context, name string) (string, error) {
	if stub.ensureErr != nil {
		return "", stub.ensureErr
	}

	stub.ensuredNames = append(stub.ensuredNames, name)
	return "folder-" + name, nil
}

func (stub *stubStorage) UploadFile(_ context.Context, folderID string, filename string, content io.Reader) (string, error) {
	stub.uploadCounter++
	if stub.uploadErrOn == stub.uploadCounter {
		return "", errExpected
	}

	stub.uploads = append(stub.uploads, folderID+"/"+filename)
	if stub.uploadCounter == 1 {
		return "f1", nil
	}

	return "i1", nil
}

func (stub *stubStorage) CreatePublicLink(_ context.Context, fileID string) (string, error) {
	if stub.linkErr != nil {
		return "", stub.linkErr
	}

	return "https://share.example.com/" + fileID, nil
}

func (stub *stubStorage) DeleteFile(_ context.Context, fileID string) error {
	stub.deleted = append(stub.deleted, fileID)
	return nil
}

type stubTagger struct {
	result *tagging.Result
	err    error
}

func (stub *stubTagger) TagTitle(_ context.Context, _ string) (*tagging.Result, error) {
	return stub.result, stub.err
}

type stubStore struct {
	saveErr error
	saved   map[uuid.UUID]*catalog.Song
}

func newStubStore() *stubStore {
	return &stubStore{saved: make(map[uuid.UUID]*catalog.Song)}
}

func (stub *stubStore) Save(_ database.Queryable, song *catalog.Song) error {
	if stub.saveErr != nil {
		return stub.saveErr
	}

	stub.saved[song.ID] = song
	return nil
}

func (stub *stubStore) List(_ database.Queryable) ([]*catalog.Song, error) {
	out := make([]*catalog.Song, 0, len(stub.saved))
	for _, song := range stub.saved {
		out = append(out, song)
	}

	return out, nil
}

func (stub *stubStore) GetWithID(_ database.Queryable, id uuid.UUID) (*catalog.Song, error) {
	if song, ok := stub.saved[id]; ok {
		return song, nil
	}

	return nil, catalog.ErrSongNotFound
}

type stubDispatcher struct {
	*sync.Mutex
	events []event.Event
}

func newStubDispatcher() *stubDispatcher {
	return &stubDispatcher{Mutex: &sync.Mutex{}}
}

func (stub *stubDispatcher) Dispatch(ev event.Event, _ event.Payload) {
	stub.Lock()
	defer stub.Unlock()
	stub.events = append(stub.events, ev)
}

func (stub *stubDispatcher) has(ev event.Event) bool {
	stub.Lock()
	defer stub.Unlock()
	for _, dispatched := range stub.events {
		if dispatched == ev {
			return true
		}
	}

	return false
}

type harness struct {
	fetcher    *stubFetcher
	storage    *stubStorage
	tagger     *stubTagger
	store      *stubStore
	dispatcher *stubDispatcher
	service    *pipeline.Service
	thumbnails *httptest.Server
}

func newHarness(t *testing.T) *harness {
	thumbnails := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		w.Write([]byte("jpeg bytes"))
	}))
	t.Cleanup(thumbnails.Close)

	h := &harness{
		fetcher: &stubFetcher{artifact: &media.Artifact{
			Data:         []byte("mp3 bytes"),
			Filename:     "b2a3e5a0-0000-0000-0000-000000000001.mp3",
			Title:        "Test Song",
			ThumbnailURL: thumbnails.URL + "/thumb.jpg",
		}},
		storage: &stubStorage{},
		tagger: &stubTagger{result: &tagging.Result{
			Artist:   "X",
			Language: "english",
			Genre:    []string{"pop"},
			Mood:     []string{"happy"},
		}},
		store:      newStubStore(),
		dispatcher: newStubDispatcher(),
		thumbnails: thumbnails,
	}

	h.service = pipeline.New(nil, h.fetcher, h.storage, h.tagger, h.store, h.dispatcher)
	return h
}

func Test_Process_PersistsRecordWhenAllStagesSucceed(t *testing.T) {
	h := newHarness(t)

	song, err := h.service.Process(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)

	assert.Equal(t, "f1", song.FileID)
	assert.Equal(t, "i1", song.ImgID)
	assert.Equal(t, "Test Song", song.Name)
	assert.Equal(t, "X", song.Artist)
	assert.Equal(t, "english", song.Language)
	assert.Equal(t, []string{"pop", "happy"}, song.Tags)
	assert.Equal(t, 0, song.Views)
	assert.Equal(t, 0, song.Likes)

	assert.Len(t, h.store.saved, 1)
	assert.Equal(t, []string{"songs", "images"}, h.storage.ensuredNames)
	assert.True(t, h.dispatcher.has(event.UPLOAD_COMPLETE))
	assert.False(t, h.dispatcher.has(event.UPLOAD_FAILED))
}

func Test_Process_AudioAndThumbnailLandInSeparateFolders(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.Process(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)

	require.Len(t, h.storage.uploads, 2)
	assert.Equal(t, "folder-songs/b2a3e5a0-0000-0000-0000-000000000001.mp3", h.storage.uploads[0])
	assert.Equal(t, "folder-images/b2a3e5a0-0000-0000-0000-000000000001.jpg", h.storage.uploads[1])
}

func Test_Process_FetchFailureAbortsBeforeAnyUpload(t *testing.T) {
	h := newHarness(t)
	h.fetcher.err = errExpected

	_, err := h.service.Process(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.Error(t, err)

	var trouble pipeline.Trouble
	require.ErrorAs(t, err, &trouble)
	assert.Equal(t, pipeline.FETCH_FAILURE, trouble.Type())
	assert.Empty(t, h.storage.uploads)
	assert.Empty(t, h.store.saved)
	assert.True(t, h.dispatcher.has(event.UPLOAD_FAILED))
}

func Test_Process_DeadThumbnailAbortsBeforeAnyUpload(t *testing.T) {
	h := newHarness(t)
	h.fetcher.artifact.ThumbnailURL = h.thumbnails.URL + "/missing.jpg"

	_, err := h.service.Process(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.Error(t, err)

	var trouble pipeline.Trouble
	require.ErrorAs(t, err, &trouble)
	assert.Equal(t, pipeline.FETCH_FAILURE, trouble.Type())
	assert.Empty(t, h.storage.uploads)
	assert.Empty(t, h.store.saved)
}

func Test_Process_ThumbnailUploadFailureDeletesOrphanedAudio(t *testing.T) {
	h := newHarness(t)
	h.storage.uploadErrOn = 2

	_, err := h.service.Process(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.Error(t, err)

	var trouble pipeline.Trouble
	require.ErrorAs(t, err, &trouble)
	assert.Equal(t, pipeline.UPLOAD_FAILURE, trouble.Type())
	assert.Equal(t, []string{"f1"}, h.storage.deleted)
	assert.Empty(t, h.store.saved)
}

func Test_Process_TaggingFailurePersistsNothing(t *testing.T) {
	h := newHarness(t)
	h.tagger.result = nil
	h.tagger.err = &tagging.MalformedResponseError{Reason: "gibberish"}

	_, err := h.service.Process(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.Error(t, err)

	var trouble pipeline.Trouble
	require.ErrorAs(t, err, &trouble)
	assert.Equal(t, pipeline.TAG_FAILURE, trouble.Type())
	assert.Empty(t, h.store.saved)
	assert.True(t, h.dispatcher.has(event.UPLOAD_FAILED))
}

func Test_Process_PersistFailureIsReported(t *testing.T) {
	h := newHarness(t)
	h.store.saveErr = errExpected

	_, err := h.service.Process(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.Error(t, err)

	var trouble pipeline.Trouble
	require.ErrorAs(t, err, &trouble)
	assert.Equal(t, pipeline.PERSIST_FAILURE, trouble.Type())
	assert.False(t, h.dispatcher.has(event.UPLOAD_COMPLETE))
}
