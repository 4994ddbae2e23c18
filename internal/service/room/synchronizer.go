package room

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/watchroom/engine/internal/repository/room"
)

type syncState int

const (
	stateIdle syncState = iota
	stateApplyingRemote
)

// Synchronizer keeps one client's player converged on the room's
// authoritative descriptor. Local intents persist then broadcast; inbound
// descriptors are reconciled into the player while local event handlers
// are suppressed, so applying a remote change never re-broadcasts it.
type Synchronizer struct {
	repo        iRoomRepo
	bus         iEventBus
	player      Player
	activeCount func() int
	roomCode    string
	clientID    string
	deadBand    float64
	suppress    time.Duration
	logger      *slog.Logger
	onState     func(Descriptor)

	mu            sync.Mutex
	state         syncState
	suppressTimer *time.Timer
	last          Descriptor
}

func newSynchronizer(s service, roomCode, clientID string, player Player, activeCount func() int, initial Descriptor, onState func(Descriptor)) *Synchronizer {
	return &Synchronizer{
		repo:        s.roomRepo,
		bus:         s.bus,
		player:      player,
		activeCount: activeCount,
		roomCode:    roomCode,
		clientID:    clientID,
		deadBand:    s.cfg.DeadBand,
		suppress:    s.cfg.SuppressWindow,
		logger:      s.logger,
		onState:     onState,
		last:        initial,
	}
}

// Run subscribes to the room topic and reconciles the authoritative row
// once, so a late joiner starts from the persisted state even if every
// broadcast before it was missed.
func (s *Synchronizer) Run(ctx context.Context) error {
	sub, err := s.bus.Subscribe(ctx, roomTopic(s.roomCode))
	if err != nil {
		return fmt.Errorf("failed to subscribe to room topic: %w", err)
	}

	if rm, err := s.repo.GetRoom(ctx, s.roomCode); err != nil {
		s.logger.InfoContext(ctx, "failed to fetch initial room state", "error", err)
	} else {
		s.Reconcile(ctx, toRoom(rm).Descriptor)
	}

	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-sub.Events():
				if !ok {
					return
				}
				if event.Event != roomUpdateEvent {
					continue
				}

				var payload Room
				if err := json.Unmarshal(event.Payload, &payload); err != nil {
					s.logger.DebugContext(ctx, "dropping malformed room update", "error", err)
					continue
				}

				s.Reconcile(ctx, payload.Descriptor)
			}
		}
	}()

	return nil
}

// NotifyPlay is a no-op for a lone viewer: nobody to converge with, and a
// solitary play must not resume playback for whoever joins later.
func (s *Synchronizer) NotifyPlay(ctx context.Context) {
	if s.applyingRemote() {
		s.logger.DebugContext(ctx, "play skipped, applying remote state")
		return
	}

	if s.activeCount() <= 1 {
		s.logger.DebugContext(ctx, "play not synced, alone in room")
		return
	}

	s.commit(ctx, func(d *Descriptor) {
		d.IsPlaying = true
		d.VideoTime = s.player.CurrentTime()
	})
}

func (s *Synchronizer) NotifyPause(ctx context.Context) {
	if s.applyingRemote() {
		s.logger.DebugContext(ctx, "pause skipped, applying remote state")
		return
	}

	s.commit(ctx, func(d *Descriptor) {
		d.IsPlaying = false
		d.VideoTime = s.player.CurrentTime()
	})
}

func (s *Synchronizer) NotifySeek(ctx context.Context, targetTime float64) {
	if s.applyingRemote() {
		s.logger.DebugContext(ctx, "seek skipped, applying remote state")
		return
	}

	s.commit(ctx, func(d *Descriptor) {
		d.VideoTime = targetTime
	})
}

func (s *Synchronizer) NotifyRateChange(ctx context.Context, rate float64) {
	if s.applyingRemote() {
		s.logger.DebugContext(ctx, "rate change skipped, applying remote state")
		return
	}

	s.commit(ctx, func(d *Descriptor) {
		d.PlaybackRate = rate
	})
}

// Descriptor returns the last-applied descriptor.
func (s *Synchronizer) Descriptor() Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// commit runs the persist-then-broadcast protocol for one local intent.
// The local descriptor is updated as soon as the persist succeeds rather
// than waiting for the self-published broadcast to loop back. A failed
// persist abandons the action; the next successful one resyncs everyone.
func (s *Synchronizer) commit(ctx context.Context, mutate func(*Descriptor)) {
	s.mu.Lock()
	d := s.last
	s.mu.Unlock()

	mutate(&d)
	d.LastActionBy = s.clientID
	d.UpdatedAt = time.Now().UnixMilli()

	updated, err := s.repo.UpdateRoomState(ctx, &room.UpdateRoomStateParams{
		RoomCode:     s.roomCode,
		IsPlaying:    d.IsPlaying,
		VideoTime:    d.VideoTime,
		PlaybackRate: d.PlaybackRate,
		LastActionBy: d.LastActionBy,
		UpdatedAt:    d.UpdatedAt,
	})
	if err != nil {
		s.logger.InfoContext(ctx, "room state update failed, playback continues locally", "error", err)
		return
	}

	result := toRoom(updated)

	s.mu.Lock()
	s.last = result.Descriptor
	s.mu.Unlock()

	if err := s.bus.Publish(ctx, roomTopic(s.roomCode), roomUpdateEvent, result); err != nil {
		// connected peers miss one beat; the persisted row catches them up
		// on their next fetch
		s.logger.InfoContext(ctx, "room state broadcast failed", "error", err)
	}
}

// Reconcile applies an inbound descriptor to the local player. Own echoes
// are discarded. The 1-second dead-band absorbs normal clock drift so two
// clients never oscillate correcting each other.
func (s *Synchronizer) Reconcile(ctx context.Context, d Descriptor) {
	if d.LastActionBy == s.clientID {
		s.logger.DebugContext(ctx, "ignoring own action", "room_code", s.roomCode)
		return
	}

	s.mu.Lock()
	s.state = stateApplyingRemote
	if s.suppressTimer != nil {
		s.suppressTimer.Stop()
	}
	s.last = d
	s.mu.Unlock()

	if diff := math.Abs(s.player.CurrentTime() - d.VideoTime); diff > s.deadBand {
		if err := s.player.Seek(d.VideoTime); err != nil {
			s.logger.WarnContext(ctx, "seek failed", "error", err)
		}
	}

	if d.IsPlaying && s.player.Paused() {
		if err := s.player.Play(); err != nil {
			s.logger.WarnContext(ctx, "play failed", "error", err)
		}
	} else if !d.IsPlaying && !s.player.Paused() {
		if err := s.player.Pause(); err != nil {
			s.logger.WarnContext(ctx, "pause failed", "error", err)
		}
	}

	if s.player.PlaybackRate() != d.PlaybackRate {
		if err := s.player.SetPlaybackRate(d.PlaybackRate); err != nil {
			s.logger.WarnContext(ctx, "rate change failed", "error", err)
		}
	}

	if s.onState != nil {
		s.onState(d)
	}

	// the adapter acknowledges commands with its own events asynchronously;
	// hold suppression long enough for those to arrive and be ignored
	s.mu.Lock()
	s.suppressTimer = time.AfterFunc(s.suppress, func() {
		s.mu.Lock()
		s.state = stateIdle
		s.mu.Unlock()
	})
	s.mu.Unlock()
}

func (s *Synchronizer) applyingRemote() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateApplyingRemote
}
