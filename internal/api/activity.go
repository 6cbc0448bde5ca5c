package api

import (
	"github.com/google/uuid"
	"github.com/mbeckett/TuneVault/internal/api/songs"
	"github.com/mbeckett/TuneVault/internal/http/websocket"
	"github.com/mbeckett/TuneVault/pkg/logger"
)

const (
	TITLE_UPLOAD_UPDATE   = "UPLOAD_UPDATE"
	TITLE_UPLOAD_COMPLETE = "UPLOAD_COMPLETE"
	TITLE_UPLOAD_FAILED   = "UPLOAD_FAILED"
)

type (
	UploadUpdate struct {
		UploadId uuid.UUID      `json:"upload_id"`
		Song     *songs.SongDto `json:"song"`
	}

	broadcaster struct {
		socketHub   *websocket.SocketHub
		songService songs.Service
	}
)

func newBroadcaster(socketHub *websocket.SocketHub, songService songs.Service) *broadcaster {
	return &broadcaster{socketHub, songService}
}

func (hub *broadcaster) BroadcastUploadUpdate(id uuid.UUID) error {
	hub.broadcast(TITLE_UPLOAD_UPDATE, UploadUpdate{UploadId: id})
	return nil
}

// BroadcastUploadComplete pushes the freshly-persisted record to all
// connected clients alongside the upload ID.
func (hub *broadcaster) BroadcastUploadComplete(id uuid.UUID) error {
	song, err := hub.songService.Song(id)
	if err != nil {
		log.Emit(logger.WARNING, "Cannot broadcast completion of upload %s: %v\n", id, err)
		return err
	}

	hub.broadcast(TITLE_UPLOAD_COMPLETE, UploadUpdate{UploadId: id, Song: songs.NewDto(song)})
	return nil
}

func (hub *broadcaster) BroadcastUploadFailed(id uuid.UUID) error {
	hub.broadcast(TITLE_UPLOAD_FAILED, UploadUpdate{UploadId: id})
	return nil
}

func (hub *broadcaster) broadcast(title string, update any) {
	hub.socketHub.Send(&websocket.SocketMessage{
		Title: title,
		Body:  map[string]interface{}{"arguments": update},
		Type:  websocket.Update,
	})
}
