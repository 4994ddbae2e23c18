package room

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/watchroom/engine/internal/repository/room"
)

// Tracker maintains this client's presence record and a local view of the
// active roster. Presence is best-effort: every store failure is logged
// and swallowed so it can never block playback sync.
type Tracker struct {
	repo       iRoomRepo
	bus        iEventBus
	roomCode   string
	username   string
	userID     string
	heartbeat  time.Duration
	staleAfter time.Duration
	logger     *slog.Logger
	onRoster   func([]Member)

	mu     sync.Mutex
	roster []Member
}

func newTracker(s service, roomCode, username, userID string, onRoster func([]Member)) *Tracker {
	return &Tracker{
		repo:       s.roomRepo,
		bus:        s.bus,
		roomCode:   roomCode,
		username:   username,
		userID:     userID,
		heartbeat:  s.cfg.HeartbeatInterval,
		staleAfter: s.cfg.StaleAfter,
		logger:     s.logger,
		onRoster:   onRoster,
	}
}

// Run joins the room, loads the roster, and starts the heartbeat loop.
// Roster reloads are full re-queries on every presence broadcast; rooms
// are small enough that incremental merging is not worth having.
func (t *Tracker) Run(ctx context.Context) error {
	if err := t.repo.UpsertPresence(ctx, &room.UpsertPresenceParams{
		RoomCode: t.roomCode,
		Username: t.username,
		UserID:   t.userID,
		LastSeen: time.Now().UnixMilli(),
		IsActive: true,
	}); err != nil {
		t.logger.InfoContext(ctx, "failed to set presence", "error", err)
	}

	t.ReloadRoster(ctx)

	sub, err := t.bus.Subscribe(ctx, presenceTopic(t.roomCode))
	if err != nil {
		return fmt.Errorf("failed to subscribe to presence topic: %w", err)
	}

	if err := t.bus.Publish(ctx, presenceTopic(t.roomCode), presenceUpdateEvent, map[string]string{
		"username": t.username,
		"action":   "joined",
	}); err != nil {
		t.logger.InfoContext(ctx, "failed to announce join", "error", err)
	}

	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.Events():
				if !ok {
					return
				}
				t.ReloadRoster(ctx)
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(t.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := t.repo.UpdatePresence(ctx, &room.UpdatePresenceParams{
					RoomCode: t.roomCode,
					Username: t.username,
					LastSeen: time.Now().UnixMilli(),
					IsActive: true,
				}); err != nil {
					t.logger.InfoContext(ctx, "heartbeat failed", "error", err)
				}
			}
		}
	}()

	return nil
}

// ReloadRoster sweeps stale records inactive, then re-reads the active
// roster in join order.
func (t *Tracker) ReloadRoster(ctx context.Context) {
	cutoff := time.Now().Add(-t.staleAfter).UnixMilli()
	if err := t.repo.MarkStalePresence(ctx, t.roomCode, cutoff); err != nil {
		t.logger.InfoContext(ctx, "failed to sweep stale presence", "error", err)
	}

	records, err := t.repo.GetActivePresence(ctx, t.roomCode)
	if err != nil {
		t.logger.InfoContext(ctx, "failed to load roster", "error", err)
		return
	}

	members := make([]Member, 0, len(records))
	for _, record := range records {
		members = append(members, toMember(record))
	}

	t.mu.Lock()
	t.roster = members
	t.mu.Unlock()

	if t.onRoster != nil {
		t.onRoster(members)
	}
}

func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.roster)
}

func (t *Tracker) Members() []Member {
	t.mu.Lock()
	defer t.mu.Unlock()

	members := make([]Member, len(t.roster))
	copy(members, t.roster)

	return members
}

// Leave marks this client inactive and announces it so peers refresh now
// instead of waiting out the staleness window. The heartbeat loop stops
// with the Run context.
func (t *Tracker) Leave(ctx context.Context) {
	if err := t.repo.UpdatePresence(ctx, &room.UpdatePresenceParams{
		RoomCode: t.roomCode,
		Username: t.username,
		LastSeen: time.Now().UnixMilli(),
		IsActive: false,
	}); err != nil {
		t.logger.InfoContext(ctx, "failed to mark presence inactive", "error", err)
	}

	if err := t.bus.Publish(ctx, presenceTopic(t.roomCode), presenceUpdateEvent, map[string]string{
		"username": t.username,
		"action":   "left",
	}); err != nil {
		t.logger.InfoContext(ctx, "failed to announce leave", "error", err)
	}
}
