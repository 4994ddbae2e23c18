package redis

import (
	"context"
	"fmt"

	"github.com/watchroom/engine/internal/repository/room"
)

func (r repo) getRoomKey(roomCode string) string {
	return "room:" + roomCode
}

// CreateRoom claims the room_code field with HSETNX so that exactly one of
// two concurrent creators wins; the loser gets ErrRoomAlreadyExists and is
// expected to re-fetch.
func (r repo) CreateRoom(ctx context.Context, params *room.CreateRoomParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	roomKey := r.getRoomKey(params.RoomCode)

	claimed, err := r.rc.HSetNX(ctx, roomKey, "room_code", params.RoomCode).Result()
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	if !claimed {
		return room.ErrRoomAlreadyExists
	}

	rm := room.Room{
		RoomCode:     params.RoomCode,
		IsPlaying:    params.IsPlaying,
		VideoTime:    params.VideoTime,
		PlaybackRate: params.PlaybackRate,
		LastActionBy: params.LastActionBy,
		UpdatedAt:    params.UpdatedAt,
	}
	if err := r.rc.HSet(ctx, roomKey, rm).Err(); err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	r.rc.Expire(ctx, roomKey, r.expireDuration)

	return nil
}

func (r repo) GetRoom(ctx context.Context, roomCode string) (room.Room, error) {
	roomKey := r.getRoomKey(roomCode)

	var rm room.Room
	if err := r.rc.HGetAll(ctx, roomKey).Scan(&rm); err != nil {
		return room.Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	if rm.RoomCode == "" {
		return room.Room{}, room.ErrRoomNotFound
	}

	r.rc.Expire(ctx, roomKey, r.expireDuration)

	return rm, nil
}

// UpdateRoomState overwrites the full descriptor and returns the written
// row. Last write wins.
func (r repo) UpdateRoomState(ctx context.Context, params *room.UpdateRoomStateParams) (room.Room, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	roomKey := r.getRoomKey(params.RoomCode)

	cmd := r.rc.Exists(ctx, roomKey)
	if err := cmd.Err(); err != nil {
		return room.Room{}, fmt.Errorf("failed to update room state: %w", err)
	}

	if cmd.Val() == 0 {
		return room.Room{}, room.ErrRoomNotFound
	}

	rm := room.Room{
		RoomCode:     params.RoomCode,
		IsPlaying:    params.IsPlaying,
		VideoTime:    params.VideoTime,
		PlaybackRate: params.PlaybackRate,
		LastActionBy: params.LastActionBy,
		UpdatedAt:    params.UpdatedAt,
	}
	if err := r.rc.HSet(ctx, roomKey, rm).Err(); err != nil {
		return room.Room{}, fmt.Errorf("failed to update room state: %w", err)
	}

	r.rc.Expire(ctx, roomKey, r.expireDuration)

	return rm, nil
}
