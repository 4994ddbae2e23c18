package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/watchroom/engine/internal/repository/room"
)

// collision on a fresh random code is near-impossible with 36^6 codes, but
// retrying is cheap
const freshCodeAttempts = 5

// GetOrCreateRoom looks up a room by code, creating it with default
// playback state when missing. An empty code requests a fresh random one.
// Two clients racing to create the same code both end up with the single
// persisted row; the loser transparently re-fetches.
func (s service) GetOrCreateRoom(ctx context.Context, roomCode string) (Room, error) {
	if roomCode == "" {
		return s.createRoomWithFreshCode(ctx)
	}

	rm, err := s.roomRepo.GetRoom(ctx, roomCode)
	if err == nil {
		return toRoom(rm), nil
	}
	if !errors.Is(err, room.ErrRoomNotFound) {
		return Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	created, err := s.createRoom(ctx, roomCode)
	if err == nil {
		return created, nil
	}
	if errors.Is(err, room.ErrRoomAlreadyExists) {
		// lost the creation race; the existing row is the one that counts
		s.logger.DebugContext(ctx, "room already exists, fetching it", "room_code", roomCode)
		rm, err := s.roomRepo.GetRoom(ctx, roomCode)
		if err != nil {
			return Room{}, fmt.Errorf("failed to get room after create conflict: %w", err)
		}

		return toRoom(rm), nil
	}

	return Room{}, fmt.Errorf("failed to create room: %w", err)
}

func (s service) createRoom(ctx context.Context, roomCode string) (Room, error) {
	params := room.CreateRoomParams{
		RoomCode:     roomCode,
		IsPlaying:    false,
		VideoTime:    0,
		PlaybackRate: 1.0,
		LastActionBy: "",
		UpdatedAt:    time.Now().UnixMilli(),
	}
	if err := s.roomRepo.CreateRoom(ctx, &params); err != nil {
		return Room{}, err
	}

	return Room{
		RoomCode: params.RoomCode,
		Descriptor: Descriptor{
			IsPlaying:    params.IsPlaying,
			VideoTime:    params.VideoTime,
			PlaybackRate: params.PlaybackRate,
			LastActionBy: params.LastActionBy,
			UpdatedAt:    params.UpdatedAt,
		},
	}, nil
}

func (s service) createRoomWithFreshCode(ctx context.Context) (Room, error) {
	var lastErr error
	for i := 0; i < freshCodeAttempts; i++ {
		roomCode := s.generator.GenerateRandomString(s.cfg.RoomCodeLength)

		created, err := s.createRoom(ctx, roomCode)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, room.ErrRoomAlreadyExists) {
			return Room{}, fmt.Errorf("failed to create room: %w", err)
		}

		lastErr = err
	}

	return Room{}, fmt.Errorf("failed to generate unused room code: %w", lastErr)
}
