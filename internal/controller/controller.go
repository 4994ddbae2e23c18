package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/watchroom/engine/internal/service/room"
	"github.com/watchroom/engine/pkg/validator"
)

type iRoomService interface {
	JoinRoom(context.Context, *room.JoinRoomParams) (*room.Session, error)
	GetLastWatched(context.Context, string) ([]room.LastWatched, error)
}

type controller struct {
	roomService iRoomService
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	logger      *slog.Logger
}

func NewController(roomService iRoomService, logger *slog.Logger) *controller {
	return &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// the bridge is bound to localhost for the local UI
				return true
			},
		},
		roomService: roomService,
		validate:    validator.NewValidator(),
		logger:      logger,
	}
}
