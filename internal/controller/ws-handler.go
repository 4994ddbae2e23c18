package controller

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/watchroom/engine/internal/player/bridge"
	"github.com/watchroom/engine/internal/service/room"
)

type joinRoomInput struct {
	Username string `json:"username" validate:"max=32"`
}

// joinRoom upgrades the UI connection and runs a full room session over
// it: the connection is both the user-input source and the media element
// behind the player adapter.
func (c controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	roomCode := chi.URLParam(r, "room-code")
	username := c.header(r, "Username")
	userID := c.header(r, "User-Id")
	videoName := c.header(r, "Video-Name")
	videoPath := c.header(r, "Video-Path")

	if validationErrors, ok := c.validate.Validate(joinRoomInput{Username: username}); !ok {
		c.logger.DebugContext(r.Context(), "invalid join request", "errors", validationErrors)
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": validationErrors})
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	writer := newWSWriter(conn)
	player := bridge.NewPlayer(writer.Send)

	sessCtx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess, err := c.roomService.JoinRoom(sessCtx, &room.JoinRoomParams{
		RoomCode: roomCode,
		Username: username,
		UserID:   userID,
		Player:   player,
		OnState: func(d room.Descriptor) {
			if err := writer.Send("ROOM_STATE", d); err != nil {
				c.logger.DebugContext(sessCtx, "failed to send room state", "error", err)
			}
		},
		OnRoster: func(members []room.Member) {
			if err := writer.Send("ROSTER", map[string]any{"members": members}); err != nil {
				c.logger.DebugContext(sessCtx, "failed to send roster", "error", err)
			}
		},
		OnMessage: func(msg room.Message) {
			if err := writer.Send("CHAT_MESSAGE", msg); err != nil {
				c.logger.DebugContext(sessCtx, "failed to send chat message", "error", err)
			}
		},
	})
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to join room", "error", err)
		writer.Send("ERROR", map[string]string{"message": "failed to join room"})
		return
	}

	if err := sess.Run(sessCtx); err != nil {
		c.logger.WarnContext(r.Context(), "failed to start session", "error", err)
		writer.Send("ERROR", map[string]string{"message": "failed to start session"})
		return
	}

	// the request context dies with the connection; teardown needs its own
	leaveCtx := context.WithoutCancel(r.Context())
	defer func() {
		if videoPath != "" {
			if err := sess.SaveLastWatched(leaveCtx, videoName, videoPath); err != nil {
				c.logger.InfoContext(leaveCtx, "failed to save last watched", "error", err)
			}
		}
		sess.Leave(leaveCtx)
	}()

	if err := writer.Send("ROOM_JOINED", map[string]any{
		"room":     sess.Room,
		"username": sess.Username,
		"user_id":  sess.UserID,
		"members":  sess.Members(),
		"messages": sess.Messages(),
	}); err != nil {
		c.logger.WarnContext(r.Context(), "failed to send room joined", "error", err)
		return
	}

	wsmux := c.getWSRouter(sess, player, videoName, videoPath)
	if err := wsmux.ServeConn(sessCtx, conn); err != nil {
		c.logger.InfoContext(r.Context(), "connection closed", "error", err)
	}
}
