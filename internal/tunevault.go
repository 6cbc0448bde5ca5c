package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mbeckett/TuneVault/internal/api"
	"github.com/mbeckett/TuneVault/internal/catalog"
	"github.com/mbeckett/TuneVault/internal/database"
	"github.com/mbeckett/TuneVault/internal/event"
	"github.com/mbeckett/TuneVault/internal/media"
	"github.com/mbeckett/TuneVault/internal/pipeline"
	"github.com/mbeckett/TuneVault/internal/storage"
	"github.com/mbeckett/TuneVault/internal/tagging"
	"github.com/mbeckett/TuneVault/pkg/docker"
	"github.com/mbeckett/TuneVault/pkg/logger"
)

var log = logger.Get("Core")

type (
	RunnableService interface {
		Run(context.Context) error
	}

	RestGateway interface {
		RunnableService
		BroadcastUploadUpdate(uuid.UUID) error
		BroadcastUploadComplete(uuid.UUID) error
		BroadcastUploadFailed(uuid.UUID) error
	}

	UploadService interface {
		Process(ctx context.Context, sourceURL string) (*catalog.Song, error)
		Songs() ([]*catalog.Song, error)
		Song(uuid.UUID) (*catalog.Song, error)
	}
)

// TuneVault represents the top-level object for the server, and is
// responsible for initialising embedded support services, stores, event
// handling, et cetera...
type tuneVaultImpl struct {
	eventBus      event.EventCoordinator
	config        TuneVaultConfig
	dockerManager docker.DockerManager

	uploadService   UploadService
	restGateway     RestGateway
	activityService *activityService
}

func New(config TuneVaultConfig) *tuneVaultImpl {
	log.Emit(logger.DEBUG, "Bootstrapping TuneVault services using config: %#v\n", config)
	return &tuneVaultImpl{
		eventBus: event.New(),
		config:   config,
	}
}

// Run will start TuneVault by bringing up all required services and
// connections, such as:
// - Docker services
// - Database connection
// - Upload pipeline collaborators
// - REST gateway and activity socket
//
// This function will not return until the server is stopped. To stop it,
// the provided context must be cancelled. Errors from which the server
// cannot recover will also cause it to stop.
func (vault *tuneVaultImpl) Run(parent context.Context) error {
	vault.dockerManager = docker.NewDockerManager()
	defer vault.dockerManager.Shutdown(time.Second * 10)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel()
	}

	log.Emit(logger.NEW, "Initialising Docker services...\n")
	if err := vault.initialiseDockerServices(vault.config, crashHandler); err != nil {
		return err
	}

	log.Emit(logger.NEW, "Connecting to database...\n")
	db := database.New()
	if err := db.Connect(vault.config.Database); err != nil {
		return err
	}

	if err := vault.initialiseServices(db); err != nil {
		return err
	}

	wg := &sync.WaitGroup{}
	vault.spawnAsyncService(ctx, wg, vault.activityService, "activity-service", crashHandler)
	vault.spawnAsyncService(ctx, wg, vault.restGateway, "rest-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "TuneVault services spawned!\n")

	wg.Wait()
	return nil
}

// initialiseServices constructs the upload pipeline and its collaborators
// against the (now connected) database, then the REST gateway on top.
func (vault *tuneVaultImpl) initialiseServices(db database.Manager) error {
	fetcher, err := media.NewFetcher(media.Config{
		FfmpegBinPath:  vault.config.Fetcher.FfmpegBinPath,
		FfprobeBinPath: vault.config.Fetcher.FfprobeBinPath,
		CookiesBlob:    vault.config.Fetcher.Cookies,
	})
	if err != nil {
		return fmt.Errorf("failed to construct media fetcher: %w", err)
	}

	storageClient := storage.NewClient(storage.Config{
		Host:        vault.config.Storage.Host,
		AccessToken: vault.config.Storage.AccessToken,
	})

	tagger := tagging.NewTagger(tagging.Config{
		ApiKey: vault.config.Tagging.ApiKey,
		Model:  vault.config.Tagging.Model,
	})

	vault.uploadService = pipeline.New(
		db.GetSqlxDb(),
		fetcher,
		storageClient,
		tagger,
		catalog.NewStore(),
		vault.eventBus,
	)

	gateway := api.NewRestGateway(&vault.config.Rest, vault.uploadService, vault.uploadService)
	vault.restGateway = gateway
	vault.activityService = newActivityService(gateway, vault.eventBus)

	return nil
}

// spawnAsyncService will run the provided function/service as it's own
// go-routine, ensuring that the service waitgroup is updated correctly
func (vault *tuneVaultImpl) spawnAsyncService(context context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(wg *sync.WaitGroup, label string, crash func(string, error)) {
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		defer wg.Done()
		if err := service.Run(context); err != nil {
			crash(label, err)
		}
	}(wg, serviceLabel, crashHandler)
}

// initialiseDockerServices will initialise the embedded Postgres
// container, unless the deployment points at an existing database.
func (vault *tuneVaultImpl) initialiseDockerServices(config TuneVaultConfig, crashHandler func(string, error)) error {
	if config.Services.EnablePostgres {
		log.Emit(logger.INFO, "Initialising embedded database...\n")
		if _, err := database.InitialiseDockerDatabase(
			vault.dockerManager,
			config.Database,
			func(err error) { crashHandler("docker-postgres", err) },
		); err != nil {
			return err
		}
	}

	return nil
}
