package uploads

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mbeckett/TuneVault/internal/api/songs"
	"github.com/mbeckett/TuneVault/internal/catalog"
	"github.com/mbeckett/TuneVault/pkg/logger"
)

var controllerLogger = logger.Get("UploadsController")

type (
	// Service runs the upload pipeline for a source link, returning the
	// persisted catalog record on success.
	Service interface {
		Process(ctx context.Context, sourceURL string) (*catalog.Song, error)
	}

	Controller struct {
		service Service
	}
)

func New(service Service) *Controller {
	return &Controller{service: service}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.upload)
}

// upload accepts the source URL via the 'link' query parameter and runs
// the pipeline synchronously; the connection is held open until the
// upload either completes or fails. All pipeline failures are reported
// as a 500 with the underlying message so the caller can see which
// stage gave out.
func (controller *Controller) upload(ec echo.Context) error {
	link := ec.QueryParam("link")
	if link == "" {
		return ec.JSON(http.StatusBadRequest, map[string]string{"error": "missing 'link' query parameter"})
	}

	song, err := controller.service.Process(ec.Request().Context(), link)
	if err != nil {
		controllerLogger.Errorf("Upload of %s failed: %v\n", link, err)
		return ec.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return ec.JSON(http.StatusOK, songs.NewDto(song))
}
