package room

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateRoomCreatesWithDefaults(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	rm, err := svc.GetOrCreateRoom(ctx, "ABC123")
	require.NoError(t, err)

	assert.Equal(t, "ABC123", rm.RoomCode)
	assert.False(t, rm.IsPlaying)
	assert.Equal(t, 0.0, rm.VideoTime)
	assert.Equal(t, 1.0, rm.PlaybackRate)
	assert.Empty(t, rm.LastActionBy)
}

func TestGetOrCreateRoomReturnsExisting(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	rm, err := svc.GetOrCreateRoom(ctx, "ABC123")
	require.NoError(t, err)

	player := newFakePlayer()
	player.setCurrentTime(55)
	sync := newSynchronizer(*svc, rm.RoomCode, "alice", player, pairCount(2), rm.Descriptor, nil)
	sync.NotifyPause(ctx)

	again, err := svc.GetOrCreateRoom(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 55.0, again.VideoTime, "a second join must see the stored row, not defaults")
	assert.Equal(t, "alice", again.LastActionBy)
}

func TestGetOrCreateRoomGeneratesFreshCode(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	rm, err := svc.GetOrCreateRoom(ctx, "")
	require.NoError(t, err)

	require.Len(t, rm.RoomCode, 6)
	for _, r := range rm.RoomCode {
		assert.Contains(t, roomCodeAlphabet, string(r))
	}

	other, err := svc.GetOrCreateRoom(ctx, "")
	require.NoError(t, err)
	assert.NotEqual(t, rm.RoomCode, other.RoomCode)
}

func TestGetOrCreateRoomConcurrentJoinersShareOneRow(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	const joiners = 8
	rooms := make([]Room, joiners)
	errs := make([]error, joiners)

	var wg sync.WaitGroup
	for i := 0; i < joiners; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			rooms[i], errs[i] = svc.GetOrCreateRoom(ctx, "ABC123")
		}()
	}
	wg.Wait()

	for i := 0; i < joiners; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "ABC123", rooms[i].RoomCode)
	}

	// one row won; everyone converges on it from here
	stored, err := svc.roomRepo.GetRoom(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 1.0, stored.PlaybackRate)
	assert.False(t, stored.IsPlaying)
}
