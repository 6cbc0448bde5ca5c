package internal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mbeckett/TuneVault/internal/event"
	"github.com/mbeckett/TuneVault/pkg/logger"
)

const (
	DEBOUNCE_DURATION  time.Duration = time.Second * 2
	MAX_TIMER_DURATION time.Duration = time.Second * 5
)

type (
	broadcastHandler func(uuid.UUID) error

	broadcaster interface {
		BroadcastUploadUpdate(uuid.UUID) error
		BroadcastUploadComplete(uuid.UUID) error
		BroadcastUploadFailed(uuid.UUID) error
	}

	eventKey struct {
		ev event.Event
		id uuid.UUID
	}

	// activityService forwards pipeline events to the websocket
	// broadcaster. Progress updates are debounced so a chatty pipeline
	// cannot flood connected clients; terminal events (complete/failed)
	// are forwarded immediately.
	activityService struct {
		*sync.Mutex
		broadcaster
		eventBus       event.EventHandler
		debounceTimers map[eventKey]*time.Timer
		maxTimers      map[eventKey]*time.Timer
	}
)

func newActivityService(broadcaster broadcaster, event event.EventHandler) *activityService {
	return &activityService{
		Mutex:          &sync.Mutex{},
		broadcaster:    broadcaster,
		eventBus:       event,
		debounceTimers: make(map[eventKey]*time.Timer),
		maxTimers:      make(map[eventKey]*time.Timer),
	}
}

func (service *activityService) Run(ctx context.Context) error {
	messageChan := make(chan event.HandlerEvent, 100)
	service.eventBus.RegisterHandlerChannel(messageChan,
		event.UPLOAD_UPDATE, event.UPLOAD_COMPLETE, event.UPLOAD_FAILED)

	log.Emit(logger.NEW, "Activity service started\n")
	for {
		select {
		case ev := <-messageChan:
			if err := service.handleEvent(ev); err != nil {
				log.Emit(logger.ERROR, "Handling of event %v failed: %v\n", ev, err)
			}
		case <-ctx.Done():
			log.Emit(logger.STOP, "Activity service closed\n")
			return nil
		}
	}
}

func (service *activityService) handleEvent(ev event.HandlerEvent) error {
	resourceID, ok := ev.Payload.(uuid.UUID)
	if !ok {
		return errors.New("illegal payload (expected UUID)")
	}

	switch ev.Event {
	case event.UPLOAD_UPDATE:
		service.scheduleEventBroadcast(eventKey{id: resourceID, ev: ev.Event}, service.BroadcastUploadUpdate)
	case event.UPLOAD_COMPLETE:
		service.cancelPendingBroadcasts(resourceID)
		return service.BroadcastUploadComplete(resourceID)
	case event.UPLOAD_FAILED:
		service.cancelPendingBroadcasts(resourceID)
		return service.BroadcastUploadFailed(resourceID)
	default:
		return errors.New("unknown event type")
	}

	return nil
}

func (service *activityService) scheduleEventBroadcast(resourceKey eventKey, handler broadcastHandler) {
	service.Lock()
	defer service.Unlock()

	broadcaster := func() { service.broadcast(resourceKey, handler) }

	// Cancel and re-set a debounce timer
	if t, ok := service.debounceTimers[resourceKey]; ok {
		t.Stop()
	}
	service.debounceTimers[resourceKey] = time.AfterFunc(DEBOUNCE_DURATION, broadcaster)

	// Set a max timer if not already set
	if _, ok := service.maxTimers[resourceKey]; !ok {
		service.maxTimers[resourceKey] = time.AfterFunc(MAX_TIMER_DURATION, broadcaster)
	}
}

func (service *activityService) broadcast(resourceKey eventKey, handler broadcastHandler) {
	service.Lock()
	defer service.Unlock()

	if t, ok := service.debounceTimers[resourceKey]; ok {
		t.Stop()
		delete(service.debounceTimers, resourceKey)
	}

	if t, ok := service.maxTimers[resourceKey]; ok {
		t.Stop()
		delete(service.maxTimers, resourceKey)
	}

	handler(resourceKey.id)
}

// cancelPendingBroadcasts drops any debounced progress updates for an
// upload which has reached a terminal state; the terminal broadcast
// supersedes them.
func (service *activityService) cancelPendingBroadcasts(id uuid.UUID) {
	service.Lock()
	defer service.Unlock()

	for key, t := range service.debounceTimers {
		if key.id == id {
			t.Stop()
			delete(service.debounceTimers, key)
		}
	}

	for key, t := range service.maxTimers {
		if key.id == id {
			t.Stop()
			delete(service.maxTimers, key)
		}
	}
}
