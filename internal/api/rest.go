package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mbeckett/TuneVault/internal/api/songs"
	"github.com/mbeckett/TuneVault/internal/api/uploads"
	"github.com/mbeckett/TuneVault/internal/http/websocket"
	"github.com/mbeckett/TuneVault/pkg/logger"
)

var log = logger.Get("API")

type (
	RestConfig struct {
		HostAddr string `toml:"host_address" env:"API_HOST_ADDR" env-default:"0.0.0.0:8080"`
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	// The RestGateway is a thin-wrapper around the Echo HTTP router. It's
	// sole responsibility is to create the routes the server exposes, and
	// to manage ongoing web socket connections and events.
	RestGateway struct {
		*broadcaster
		config            *RestConfig
		ec                *echo.Echo
		socket            *websocket.SocketHub
		uploadsController controller
		songsController   controller
	}
)

// NewRestGateway constructs the Echo router and populates it with all the
// routes defined by the various controllers.
func NewRestGateway(
	config *RestConfig,
	uploadService uploads.Service,
	songService songs.Service,
) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true

	socket := websocket.New()
	gateway := &RestGateway{
		broadcaster:       newBroadcaster(socket, songService),
		config:            config,
		ec:                ec,
		socket:            socket,
		uploadsController: uploads.New(uploadService),
		songsController:   songs.New(songService),
	}

	ec.Use(middleware.Logger())
	ec.Use(middleware.Recover())
	ec.Pre(middleware.AddTrailingSlash())

	ec.GET("/", func(ec echo.Context) error {
		return ec.JSON(http.StatusOK, map[string]string{"message": "TuneVault is running!"})
	})

	ec.GET("/activity/ws/", func(ec echo.Context) error {
		gateway.socket.UpgradeToSocket(ec.Response(), ec.Request())
		return nil
	})

	uploadGroup := ec.Group("/upload")
	gateway.uploadsController.SetRoutes(uploadGroup)

	songGroup := ec.Group("/songs")
	gateway.songsController.SetRoutes(songGroup)

	// New clients are welcomed with the current catalog; the CATALOG_INDEX
	// command serves the same payload on demand.
	socket.WithConnectionCallback(func() map[string]interface{} {
		return map[string]interface{}{"songs": gateway.songDtos()}
	})
	socket.BindCommand("CATALOG_INDEX", func(hub *websocket.SocketHub, message *websocket.SocketMessage) error {
		hub.Send(message.FormReply(
			"CATALOG_INDEX",
			map[string]interface{}{"songs": gateway.songDtos()},
			websocket.Response,
		))
		return nil
	})

	return gateway
}

func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	// Start echo router
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil {
			ctxCancel(err)
		}
	}()

	// Start thread to listen for context cancellation
	go func(ec *echo.Echo) {
		<-ctx.Done()
		ec.Close()
	}(gateway.ec)

	// Start websocket
	wg.Add(1)
	go func() {
		defer wg.Done()
		gateway.socket.Start(ctx)
	}()

	wg.Wait()

	// Return cancellation cause if any, otherwise nil as parent context
	// cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}

func (gateway *RestGateway) songDtos() []*songs.SongDto {
	items, err := gateway.songService.Songs()
	if err != nil {
		log.Emit(logger.WARNING, "Failed to list songs for socket payload: %v\n", err)
		return []*songs.SongDto{}
	}

	dtos := make([]*songs.SongDto, len(items))
	for k, v := range items {
		dtos[k] = songs.NewDto(v)
	}

	return dtos
}
