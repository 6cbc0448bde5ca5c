package songs

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/mbeckett/TuneVault/internal/catalog"
)

type (
	// SongDto is the response shape used by every endpoint which returns
	// catalog records (list, get, upload).
	SongDto struct {
		Id        uuid.UUID `json:"id"`
		FileId    string    `json:"fileId"`
		ImgId     string    `json:"imgId"`
		Name      string    `json:"name"`
		Artist    string    `json:"artist"`
		Language  string    `json:"language"`
		Tags      []string  `json:"tags"`
		Views     int       `json:"views"`
		Likes     int       `json:"likes"`
		CreatedAt time.Time `json:"createdAt"`
	}

	Service interface {
		Songs() ([]*catalog.Song, error)
		Song(uuid.UUID) (*catalog.Song, error)
	}

	Controller struct {
		service Service
	}
)

func New(service Service) *Controller {
	return &Controller{service: service}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.list)
	eg.GET("/:id/", controller.get)
}

func (controller *Controller) list(ec echo.Context) error {
	items, err := controller.service.Songs()
	if err != nil {
		return ec.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	dtos := make([]*SongDto, len(items))
	for k, v := range items {
		dtos[k] = NewDto(v)
	}

	return ec.JSON(http.StatusOK, dtos)
}

func (controller *Controller) get(ec echo.Context) error {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return ec.JSON(http.StatusBadRequest, map[string]string{"error": "song ID is not a valid UUID"})
	}

	song, err := controller.service.Song(id)
	if err != nil {
		return ec.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}

	return ec.JSON(http.StatusOK, NewDto(song))
}

// NewDto creates a SongDto from the catalog model.
func NewDto(song *catalog.Song) *SongDto {
	return &SongDto{
		Id:        song.ID,
		FileId:    song.FileID,
		ImgId:     song.ImgID,
		Name:      song.Name,
		Artist:    song.Artist,
		Language:  song.Language,
		Tags:      song.Tags,
		Views:     song.Views,
		Likes:     song.Likes,
		CreatedAt: song.CreatedAt,
	}
}
