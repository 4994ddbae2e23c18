package controller

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/watchroom/engine/internal/player/bridge"
	"github.com/watchroom/engine/internal/service/room"
	"github.com/watchroom/engine/pkg/wsrouter"
)

const lastWatchedCheckpointEvery = 10 * time.Second

type playbackInput struct {
	Time float64 `json:"time"`
}

type rateInput struct {
	Rate float64 `json:"rate" validate:"oneof=0.25 0.5 0.75 1 1.25 1.5 1.75 2"`
}

type chatInput struct {
	Message string `json:"message" validate:"required,max=500"`
}

type playerEventInput struct {
	Event string  `json:"event"`
	Time  float64 `json:"time"`
}

// handle decodes the typed payload for one message type. Malformed
// payloads are dropped with a debug line; the peer is the local UI, not
// an untrusted remote.
func handle[T any](c controller, fn func(ctx context.Context, input T)) wsrouter.HandlerFunc {
	return func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) {
		var input T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &input); err != nil {
				c.logger.DebugContext(ctx, "malformed payload", "error", err)
				return
			}
		}

		fn(ctx, input)
	}
}

func (c controller) getWSRouter(sess *room.Session, player *bridge.Player, videoName, videoPath string) *wsrouter.WSRouter {
	mux := wsrouter.New()

	mux.Handle("ALIVE", func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) {})

	// playback intents, fed by the UI media element's own events; the
	// synchronizer ignores them while it is applying a remote update
	mux.Handle("PLAY", handle(c, func(ctx context.Context, input playbackInput) {
		player.ReportPlay(input.Time)
		sess.NotifyPlay(ctx)
	}))
	mux.Handle("PAUSE", handle(c, func(ctx context.Context, input playbackInput) {
		player.ReportPause(input.Time)
		sess.NotifyPause(ctx)
	}))
	mux.Handle("SEEK", handle(c, func(ctx context.Context, input playbackInput) {
		player.ReportTime(input.Time)
		sess.NotifySeek(ctx, input.Time)
	}))
	mux.Handle("RATE", handle(c, func(ctx context.Context, input rateInput) {
		if validationErrors, ok := c.validate.Validate(input); !ok {
			c.logger.DebugContext(ctx, "invalid rate", "errors", validationErrors)
			return
		}
		player.ReportRate(input.Rate)
		sess.NotifyRateChange(ctx, input.Rate)
	}))

	// handlers run sequentially on the connection's read loop, so the
	// checkpoint clock needs no locking
	var lastCheckpoint time.Time
	mux.Handle("TIME_UPDATE", handle(c, func(ctx context.Context, input playbackInput) {
		player.ReportTime(input.Time)

		if videoPath == "" || time.Since(lastCheckpoint) < lastWatchedCheckpointEvery {
			return
		}
		lastCheckpoint = time.Now()
		if err := sess.SaveLastWatched(ctx, videoName, videoPath); err != nil {
			c.logger.InfoContext(ctx, "failed to save last watched", "error", err)
		}
	}))

	mux.Handle("PLAYER_EVENT", handle(c, func(ctx context.Context, input playerEventInput) {
		// buffering and decode errors stay local; the synchronizer just
		// stops hearing playback events until the element recovers
		c.logger.DebugContext(ctx, "player event", "event", input.Event, "time", input.Time)
	}))

	mux.Handle("CHAT", handle(c, func(ctx context.Context, input chatInput) {
		if validationErrors, ok := c.validate.Validate(input); !ok {
			c.logger.DebugContext(ctx, "invalid chat message", "errors", validationErrors)
			return
		}
		if err := sess.SendMessage(ctx, input.Message); err != nil {
			if errors.Is(err, room.ErrEmptyMessage) {
				return
			}
			c.logger.InfoContext(ctx, "failed to send chat message", "error", err)
		}
	}))

	return mux
}
