package room

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/watchroom/engine/internal/repository/pubsub"
	"github.com/watchroom/engine/internal/repository/room"
	"github.com/watchroom/engine/pkg/randstr"
)

var ErrEmptyMessage = errors.New("empty message")

const (
	roomUpdateEvent     = "room-update"
	newMessageEvent     = "new-message"
	presenceUpdateEvent = "presence-update"
)

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func roomTopic(roomCode string) string {
	return "room-" + roomCode
}

func chatTopic(roomCode string) string {
	return "chat-" + roomCode
}

func presenceTopic(roomCode string) string {
	return "presence-" + roomCode
}

type iRoomRepo interface {
	CreateRoom(context.Context, *room.CreateRoomParams) error
	GetRoom(context.Context, string) (room.Room, error)
	UpdateRoomState(context.Context, *room.UpdateRoomStateParams) (room.Room, error)
	UpsertPresence(context.Context, *room.UpsertPresenceParams) error
	UpdatePresence(context.Context, *room.UpdatePresenceParams) error
	MarkStalePresence(ctx context.Context, roomCode string, olderThan int64) error
	GetActivePresence(context.Context, string) ([]room.Presence, error)
	AddMessage(context.Context, *room.AddMessageParams) (room.Message, error)
	GetMessages(context.Context, string) ([]room.Message, error)
	UpsertLastWatched(context.Context, *room.UpsertLastWatchedParams) error
	GetLastWatched(context.Context, string) ([]room.LastWatched, error)
}

type iEventBus interface {
	Publish(ctx context.Context, topic, event string, payload any) error
	Subscribe(ctx context.Context, topic string) (pubsub.Subscription, error)
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

// Player is the local player adapter: the only surface the sync core
// depends on. How media is decoded or sourced is not its concern.
type Player interface {
	CurrentTime() float64
	Paused() bool
	PlaybackRate() float64
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetPlaybackRate(rate float64) error
}

type Config struct {
	RoomCodeLength    int
	DeadBand          float64
	SuppressWindow    time.Duration
	HeartbeatInterval time.Duration
	StaleAfter        time.Duration
}

type service struct {
	roomRepo  iRoomRepo
	bus       iEventBus
	generator iGenerator
	logger    *slog.Logger
	cfg       Config
}

func NewService(roomRepo iRoomRepo, bus iEventBus, cfg *Config, logger *slog.Logger) *service {
	s := service{
		roomRepo:  roomRepo,
		bus:       bus,
		generator: randstr.New([]byte(roomCodeAlphabet)),
		logger:    logger,
		cfg:       *cfg,
	}

	if s.cfg.RoomCodeLength == 0 {
		s.cfg.RoomCodeLength = 6
	}
	if s.cfg.DeadBand == 0 {
		s.cfg.DeadBand = 1.0
	}
	if s.cfg.SuppressWindow == 0 {
		s.cfg.SuppressWindow = 200 * time.Millisecond
	}
	if s.cfg.HeartbeatInterval == 0 {
		s.cfg.HeartbeatInterval = 5 * time.Second
	}
	if s.cfg.StaleAfter == 0 {
		s.cfg.StaleAfter = 30 * time.Second
	}

	return &s
}
