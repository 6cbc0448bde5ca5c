package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mbeckett/TuneVault/internal/catalog"
	"github.com/mbeckett/TuneVault/internal/database"
	"github.com/mbeckett/TuneVault/internal/event"
	"github.com/mbeckett/TuneVault/internal/media"
	"github.com/mbeckett/TuneVault/internal/tagging"
	"github.com/mbeckett/TuneVault/pkg/logger"
)

var log = logger.Get("Pipeline")

const (
	songsFolderName  = "songs"
	imagesFolderName = "images"
)

type (
	// MediaFetcher downloads and transcodes the audio for a source URL.
	MediaFetcher interface {
		Fetch(ctx context.Context, sourceURL string) (*media.Artifact, error)
	}

	// StorageProvider is the remote file host the pipeline uploads in to.
	StorageProvider interface {
		EnsureFolder(ctx context.Context, name string) (string, error)
		UploadFile(ctx context.Context, folderID string, filename string, content io.Reader) (string, error)
		CreatePublicLink(ctx context.Context, fileID string) (string, error)
		DeleteFile(ctx context.Context, fileID string) error
	}

	// Tagger classifies a song title in to artist/language/tag metadata.
	Tagger interface {
		TagTitle(ctx context.Context, title string) (*tagging.Result, error)
	}

	// CatalogStore persists and re-reads completed upload records.
	CatalogStore interface {
		Save(db database.Queryable, song *catalog.Song) error
		List(db database.Queryable) ([]*catalog.Song, error)
		GetWithID(db database.Queryable, id uuid.UUID) (*catalog.Song, error)
	}

	Service struct {
		db         database.Queryable
		fetcher    MediaFetcher
		storage    StorageProvider
		tagger     Tagger
		store      CatalogStore
		eventBus   event.EventDispatcher
		httpClient *http.Client

		// folderMutex serializes folder lookup-then-create against the
		// storage provider; EnsureFolder is not atomic provider-side and
		// concurrent uploads would otherwise race to duplicate folders.
		folderMutex sync.Mutex
	}
)

func New(
	db database.Queryable,
	fetcher MediaFetcher,
	storage StorageProvider,
	tagger Tagger,
	store CatalogStore,
	eventBus event.EventDispatcher,
) *Service {
	return &Service{
		db:         db,
		fetcher:    fetcher,
		storage:    storage,
		tagger:     tagger,
		store:      store,
		eventBus:   eventBus,
		httpClient: &http.Client{},
	}
}

// Process runs the full upload pipeline for the source URL provided:
// fetch and transcode the audio, upload audio and thumbnail to storage,
// tag the title, and persist the resulting record. A record is persisted
// IF and ONLY IF every prior stage succeeded; a failure in any stage
// aborts the run with a stage-typed Trouble and nothing is persisted.
func (service *Service) Process(ctx context.Context, sourceURL string) (*catalog.Song, error) {
	recordID := uuid.New()
	log.Emit(logger.NEW, "Beginning upload pipeline %s for %s\n", recordID, sourceURL)

	song, err := service.process(ctx, recordID, sourceURL)
	if err != nil {
		trouble := asTrouble(err)
		log.Emit(logger.ERROR, "Upload pipeline %s failed (%s): %s\n", recordID, trouble.Type(), trouble.Error())
		service.eventBus.Dispatch(event.UPLOAD_FAILED, recordID)
		return nil, trouble
	}

	log.Emit(logger.SUCCESS, "Upload pipeline %s complete: %q by %q\n", recordID, song.Name, song.Artist)
	service.eventBus.Dispatch(event.UPLOAD_COMPLETE, recordID)
	return song, nil
}

func (service *Service) process(ctx context.Context, recordID uuid.UUID, sourceURL string) (*catalog.Song, error) {
	artifact, err := service.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		return nil, newTroubleOfType(err, FETCH_FAILURE)
	}

	service.eventBus.Dispatch(event.UPLOAD_UPDATE, recordID)

	// The thumbnail is fetched before anything is uploaded so that a dead
	// thumbnail URL cannot leave an orphaned audio file behind.
	thumbnail, err := service.fetchThumbnail(ctx, artifact.ThumbnailURL)
	if err != nil {
		return nil, newTroubleOfType(err, FETCH_FAILURE)
	}

	fileID, imgID, err := service.uploadArtifacts(ctx, artifact, thumbnail)
	if err != nil {
		return nil, newTroubleOfType(err, UPLOAD_FAILURE)
	}

	service.eventBus.Dispatch(event.UPLOAD_UPDATE, recordID)

	result, err := service.tagger.TagTitle(ctx, artifact.Title)
	if err != nil {
		return nil, newTrouble(err)
	}

	song := &catalog.Song{Tags: result.Tags()}
	song.ID = recordID
	song.FileID = fileID
	song.ImgID = imgID
	song.Name = artifact.Title
	song.Artist = result.Artist
	song.Language = result.Language

	if err := service.store.Save(service.db, song); err != nil {
		return nil, newTroubleOfType(err, PERSIST_FAILURE)
	}

	// Re-read so the caller sees the record as persisted (timestamps included).
	saved, err := service.store.GetWithID(service.db, recordID)
	if err != nil {
		return nil, newTroubleOfType(err, PERSIST_FAILURE)
	}

	return saved, nil
}

// Songs returns every record in the catalog, newest first.
func (service *Service) Songs() ([]*catalog.Song, error) {
	return service.store.List(service.db)
}

func (service *Service) Song(id uuid.UUID) (*catalog.Song, error) {
	return service.store.GetWithID(service.db, id)
}

// uploadArtifacts pushes the audio and thumbnail to the storage provider
// and makes both publicly linkable. If the thumbnail upload fails after
// the audio upload succeeded, the audio file is deleted on a best-effort
// basis so a failed run leaves no orphans behind.
func (service *Service) uploadArtifacts(ctx context.Context, artifact *media.Artifact, thumbnail []byte) (string, string, error) {
	service.folderMutex.Lock()
	songsFolderID, err := service.storage.EnsureFolder(ctx, songsFolderName)
	if err != nil {
		service.folderMutex.Unlock()
		return "", "", err
	}

	imagesFolderID, err := service.storage.EnsureFolder(ctx, imagesFolderName)
	service.folderMutex.Unlock()
	if err != nil {
		return "", "", err
	}

	fileID, err := service.storage.UploadFile(ctx, songsFolderID, artifact.Filename, bytes.NewReader(artifact.Data))
	if err != nil {
		return "", "", err
	}

	imgID, err := service.storage.UploadFile(ctx, imagesFolderID, thumbnailFilename(artifact.Filename), bytes.NewReader(thumbnail))
	if err != nil {
		service.deleteBestEffort(ctx, fileID)
		return "", "", err
	}

	fileLink, err := service.storage.CreatePublicLink(ctx, fileID)
	if err != nil {
		service.deleteBestEffort(ctx, fileID)
		service.deleteBestEffort(ctx, imgID)
		return "", "", err
	}

	imgLink, err := service.storage.CreatePublicLink(ctx, imgID)
	if err != nil {
		service.deleteBestEffort(ctx, fileID)
		service.deleteBestEffort(ctx, imgID)
		return "", "", err
	}

	log.Emit(logger.DEBUG, "Uploaded %s (link %s) and thumbnail (link %s)\n", artifact.Filename, fileLink, imgLink)
	return fileID, imgID, nil
}

func (service *Service) fetchThumbnail(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("source media has no thumbnail")
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	response, err := service.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch thumbnail: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch thumbnail: status %s", response.Status)
	}

	return io.ReadAll(response.Body)
}

func (service *Service) deleteBestEffort(ctx context.Context, fileID string) {
	if err := service.storage.DeleteFile(ctx, fileID); err != nil {
		log.Emit(logger.WARNING, "Failed to clean up orphaned file %s: %v\n", fileID, err)
	}
}

// thumbnailFilename derives the image filename from the audio filename,
// keeping the two artifacts of one upload correlated by basename.
func thumbnailFilename(audioFilename string) string {
	return strings.TrimSuffix(audioFilename, ".mp3") + ".jpg"
}

func asTrouble(err error) Trouble {
	if trouble, ok := err.(Trouble); ok {
		return trouble
	}

	return newTrouble(err)
}
