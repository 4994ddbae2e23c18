package room

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/watchroom/engine/internal/repository/room"
)

var (
	usernameAdjectives = []string{"Happy", "Sleepy", "Grumpy", "Dopey", "Bashful", "Sneezy", "Doc"}
	usernameNouns      = []string{"Panda", "Tiger", "Lion", "Bear", "Wolf", "Fox", "Eagle"}
)

func generateUsername() string {
	adj := usernameAdjectives[rand.Intn(len(usernameAdjectives))]
	noun := usernameNouns[rand.Intn(len(usernameNouns))]
	return fmt.Sprintf("%s%s%d", adj, noun, rand.Intn(100))
}

type JoinRoomParams struct {
	// RoomCode empty requests a fresh room with a generated code.
	RoomCode string
	// Username doubles as the sync identity (last_action_by).
	Username string
	UserID   string
	Player   Player

	// UI hooks, all optional and invoked off the caller's goroutine.
	OnState   func(Descriptor)
	OnRoster  func([]Member)
	OnMessage func(Message)
}

// Session is one client's membership in a room: its synchronizer,
// presence tracker and chat log, wired to one player adapter.
type Session struct {
	Room     Room
	Username string
	UserID   string

	repo    iRoomRepo
	sync    *Synchronizer
	tracker *Tracker
	chat    *ChatLog
	player  Player
}

func (s service) JoinRoom(ctx context.Context, params *JoinRoomParams) (*Session, error) {
	if params.Username == "" {
		params.Username = generateUsername()
	}
	if params.UserID == "" {
		params.UserID = uuid.NewString()
	}

	rm, err := s.GetOrCreateRoom(ctx, params.RoomCode)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create room: %w", err)
	}

	tracker := newTracker(s, rm.RoomCode, params.Username, params.UserID, params.OnRoster)
	sync := newSynchronizer(s, rm.RoomCode, params.Username, params.Player, tracker.ActiveCount, rm.Descriptor, params.OnState)
	chat := newChatLog(s, rm.RoomCode, params.Username, params.UserID, params.OnMessage)

	return &Session{
		Room:     rm,
		Username: params.Username,
		UserID:   params.UserID,
		repo:     s.roomRepo,
		sync:     sync,
		tracker:  tracker,
		chat:     chat,
		player:   params.Player,
	}, nil
}

// Run starts the presence, sync and chat loops. They stop when ctx is
// canceled.
func (sess *Session) Run(ctx context.Context) error {
	if err := sess.tracker.Run(ctx); err != nil {
		return err
	}
	if err := sess.sync.Run(ctx); err != nil {
		return err
	}
	if err := sess.chat.Run(ctx); err != nil {
		return err
	}

	return nil
}

func (sess *Session) NotifyPlay(ctx context.Context)  { sess.sync.NotifyPlay(ctx) }
func (sess *Session) NotifyPause(ctx context.Context) { sess.sync.NotifyPause(ctx) }

func (sess *Session) NotifySeek(ctx context.Context, targetTime float64) {
	sess.sync.NotifySeek(ctx, targetTime)
}

func (sess *Session) NotifyRateChange(ctx context.Context, rate float64) {
	sess.sync.NotifyRateChange(ctx, rate)
}

func (sess *Session) SendMessage(ctx context.Context, text string) error {
	return sess.chat.Send(ctx, text)
}

func (sess *Session) Descriptor() Descriptor { return sess.sync.Descriptor() }
func (sess *Session) Members() []Member      { return sess.tracker.Members() }
func (sess *Session) ActiveCount() int       { return sess.tracker.ActiveCount() }
func (sess *Session) Messages() []Message    { return sess.chat.Messages() }

// SaveLastWatched checkpoints the current position for the
// continue-watching list. Best-effort.
func (sess *Session) SaveLastWatched(ctx context.Context, videoName, videoPath string) error {
	return sess.repo.UpsertLastWatched(ctx, &room.UpsertLastWatchedParams{
		UserID:    sess.UserID,
		RoomCode:  sess.Room.RoomCode,
		VideoTime: sess.player.CurrentTime(),
		VideoName: videoName,
		VideoPath: videoPath,
		UpdatedAt: time.Now().UnixMilli(),
	})
}

// Leave marks this client gone. The room row itself is never deleted;
// rooms are durable and reusable.
func (sess *Session) Leave(ctx context.Context) {
	sess.tracker.Leave(ctx)
}

func (s service) GetLastWatched(ctx context.Context, userID string) ([]LastWatched, error) {
	records, err := s.roomRepo.GetLastWatched(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get last watched: %w", err)
	}

	result := make([]LastWatched, 0, len(records))
	for _, record := range records {
		result = append(result, toLastWatched(record))
	}

	return result, nil
}
