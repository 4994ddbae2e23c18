package room

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pubsubRedis "github.com/watchroom/engine/internal/repository/pubsub/redis"
	roomRedis "github.com/watchroom/engine/internal/repository/room/redis"
)

func newTestService(t *testing.T) *service {
	t.Helper()

	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	roomRepo := roomRedis.NewRepo(rc, logger, time.Hour)
	bus := pubsubRedis.NewBus(rc, logger)

	return NewService(roomRepo, bus, &Config{
		HeartbeatInterval: 20 * time.Millisecond,
		StaleAfter:        30 * time.Second,
	}, logger)
}

type fakePlayer struct {
	mu          sync.Mutex
	currentTime float64
	paused      bool
	rate        float64
	plays       int
	pauses      int
	seeks       []float64
	rateChanges []float64
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{paused: true, rate: 1.0}
}

func (p *fakePlayer) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentTime
}

func (p *fakePlayer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *fakePlayer) PlaybackRate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

func (p *fakePlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
	p.plays++
	return nil
}

func (p *fakePlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
	p.pauses++
	return nil
}

func (p *fakePlayer) Seek(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentTime = seconds
	p.seeks = append(p.seeks, seconds)
	return nil
}

func (p *fakePlayer) SetPlaybackRate(rate float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rate = rate
	p.rateChanges = append(p.rateChanges, rate)
	return nil
}

func (p *fakePlayer) seekCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seeks)
}

func (p *fakePlayer) playCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays
}

func (p *fakePlayer) setCurrentTime(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentTime = seconds
}

func pairCount(n int) func() int {
	return func() int { return n }
}

func TestReconcileIgnoresOwnEcho(t *testing.T) {
	svc := newTestService(t)
	player := newFakePlayer()
	sync := newSynchronizer(*svc, "ABC123", "alice", player, pairCount(2), Descriptor{PlaybackRate: 1.0}, nil)

	sync.Reconcile(context.Background(), Descriptor{
		IsPlaying:    true,
		VideoTime:    120,
		PlaybackRate: 1.5,
		LastActionBy: "alice",
	})

	assert.True(t, player.Paused(), "own echo must not touch the player")
	assert.Equal(t, 0, player.playCount())
	assert.Equal(t, 0, player.seekCount())
	assert.Equal(t, 1.0, player.PlaybackRate())
}

func TestReconcileDeadBand(t *testing.T) {
	svc := newTestService(t)
	player := newFakePlayer()
	player.setCurrentTime(10.4)
	sync := newSynchronizer(*svc, "ABC123", "alice", player, pairCount(2), Descriptor{PlaybackRate: 1.0}, nil)

	// within the dead-band: no seek
	sync.Reconcile(context.Background(), Descriptor{
		VideoTime:    10.0,
		PlaybackRate: 1.0,
		LastActionBy: "bob",
	})
	assert.Equal(t, 0, player.seekCount())

	// beyond it: seek to the broadcast position
	sync.Reconcile(context.Background(), Descriptor{
		VideoTime:    20.0,
		PlaybackRate: 1.0,
		LastActionBy: "bob",
	})
	require.Equal(t, 1, player.seekCount())
	assert.Equal(t, 20.0, player.CurrentTime())
}

func TestReconcileIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	player := newFakePlayer()
	sync := newSynchronizer(*svc, "ABC123", "alice", player, pairCount(2), Descriptor{PlaybackRate: 1.0}, nil)

	d := Descriptor{
		IsPlaying:    true,
		VideoTime:    50,
		PlaybackRate: 1.5,
		LastActionBy: "bob",
	}
	for i := 0; i < 3; i++ {
		sync.Reconcile(context.Background(), d)
	}

	assert.False(t, player.Paused())
	assert.Equal(t, 1.5, player.PlaybackRate())
	assert.Equal(t, 1, player.playCount(), "re-applying the same descriptor must be a no-op")
	assert.Equal(t, 1, player.seekCount())
}

func TestNotifyPlayAloneIsNoOp(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	rm, err := svc.GetOrCreateRoom(ctx, "ABC123")
	require.NoError(t, err)

	sub, err := svc.bus.Subscribe(ctx, roomTopic(rm.RoomCode))
	require.NoError(t, err)
	defer sub.Close()

	player := newFakePlayer()
	player.setCurrentTime(33)
	sync := newSynchronizer(*svc, rm.RoomCode, "alice", player, pairCount(1), rm.Descriptor, nil)

	sync.NotifyPlay(ctx)

	stored, err := svc.roomRepo.GetRoom(ctx, rm.RoomCode)
	require.NoError(t, err)
	assert.False(t, stored.IsPlaying, "lone viewer must not persist a play")
	assert.Empty(t, stored.LastActionBy)

	select {
	case event := <-sub.Events():
		t.Fatalf("lone viewer must not broadcast, got %q", event.Event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotifyPauseNotGuardedByParticipantCount(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	rm, err := svc.GetOrCreateRoom(ctx, "ABC123")
	require.NoError(t, err)

	player := newFakePlayer()
	player.setCurrentTime(12)
	sync := newSynchronizer(*svc, rm.RoomCode, "alice", player, pairCount(1), rm.Descriptor, nil)

	sync.NotifyPause(ctx)

	stored, err := svc.roomRepo.GetRoom(ctx, rm.RoomCode)
	require.NoError(t, err)
	assert.False(t, stored.IsPlaying)
	assert.Equal(t, "alice", stored.LastActionBy)
	assert.Equal(t, 12.0, stored.VideoTime)
}

func TestNotifySuppressedWhileApplyingRemote(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	rm, err := svc.GetOrCreateRoom(ctx, "ABC123")
	require.NoError(t, err)

	player := newFakePlayer()
	sync := newSynchronizer(*svc, rm.RoomCode, "alice", player, pairCount(2), rm.Descriptor, nil)

	// applying bob's update triggers the player's own event handlers; those
	// must not echo the change back into the room
	sync.Reconcile(ctx, Descriptor{
		IsPlaying:    true,
		VideoTime:    60,
		PlaybackRate: 1.0,
		LastActionBy: "bob",
	})
	sync.NotifyPause(ctx)

	stored, err := svc.roomRepo.GetRoom(ctx, rm.RoomCode)
	require.NoError(t, err)
	assert.Empty(t, stored.LastActionBy, "no local action may commit during the suppression window")
}

func TestCommitAppliesLocallyBeforeBroadcastReturns(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	rm, err := svc.GetOrCreateRoom(ctx, "ABC123")
	require.NoError(t, err)

	player := newFakePlayer()
	player.setCurrentTime(7)
	sync := newSynchronizer(*svc, rm.RoomCode, "alice", player, pairCount(2), rm.Descriptor, nil)

	sync.NotifyPlay(ctx)

	d := sync.Descriptor()
	assert.True(t, d.IsPlaying)
	assert.Equal(t, 7.0, d.VideoTime)
	assert.Equal(t, "alice", d.LastActionBy)
}

func TestTwoClientsConverge(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rm, err := svc.GetOrCreateRoom(ctx, "ABC123")
	require.NoError(t, err)

	playerA := newFakePlayer()
	playerB := newFakePlayer()
	syncA := newSynchronizer(*svc, rm.RoomCode, "alice", playerA, pairCount(2), rm.Descriptor, nil)
	syncB := newSynchronizer(*svc, rm.RoomCode, "bob", playerB, pairCount(2), rm.Descriptor, nil)
	require.NoError(t, syncB.Run(ctx))

	playerA.setCurrentTime(42)
	syncA.NotifyPlay(ctx)

	require.Eventually(t, func() bool {
		return !playerB.Paused() && playerB.CurrentTime() == 42.0
	}, time.Second, 10*time.Millisecond, "B must mirror A's play")

	syncA.NotifyRateChange(ctx, 1.5)
	require.Eventually(t, func() bool {
		return playerB.PlaybackRate() == 1.5
	}, time.Second, 10*time.Millisecond, "B must mirror A's rate change")
}

func TestSeekWhileAloneAndLateJoinerCatchesUp(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rm, err := svc.GetOrCreateRoom(ctx, "ABC123")
	require.NoError(t, err)

	// A is effectively alone: B's presence went stale 40s ago. Seek is
	// unguarded, so it must still persist and broadcast.
	playerA := newFakePlayer()
	syncA := newSynchronizer(*svc, rm.RoomCode, "alice", playerA, pairCount(1), rm.Descriptor, nil)
	syncA.NotifySeek(ctx, 42.0)

	stored, err := svc.roomRepo.GetRoom(ctx, rm.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, 42.0, stored.VideoTime)

	// a fresh client starts from the authoritative row, no broadcast needed
	playerC := newFakePlayer()
	rmC, err := svc.GetOrCreateRoom(ctx, "ABC123")
	require.NoError(t, err)
	syncC := newSynchronizer(*svc, rmC.RoomCode, "carol", playerC, pairCount(2), rmC.Descriptor, nil)
	require.NoError(t, syncC.Run(ctx))

	require.Eventually(t, func() bool {
		return playerC.CurrentTime() == 42.0
	}, time.Second, 10*time.Millisecond)
}
