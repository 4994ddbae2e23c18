package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/watchroom/engine/internal/repository/room"
)

func (r repo) getPresenceKey(roomCode, username string) string {
	return "room:" + roomCode + ":presence:" + username
}

func (r repo) getPresenceListKey(roomCode string) string {
	return "room:" + roomCode + ":presencelist"
}

func (r repo) UpsertPresence(ctx context.Context, params *room.UpsertPresenceParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	presenceKey := r.getPresenceKey(params.RoomCode, params.Username)
	presenceListKey := r.getPresenceListKey(params.RoomCode)

	pipe := r.rc.TxPipeline()

	record := room.Presence{
		Username: params.Username,
		UserID:   params.UserID,
		LastSeen: params.LastSeen,
		IsActive: params.IsActive,
	}
	pipe.HSet(ctx, presenceKey, record)
	pipe.Expire(ctx, presenceKey, r.expireDuration)

	// keep the join order stable: a returning member keeps its original slot
	if err := r.rc.ZScore(ctx, presenceListKey, params.Username).Err(); err != nil {
		if !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to upsert presence: %w", err)
		}
		r.addWithIncrement(ctx, pipe, presenceListKey, params.Username)
	}
	pipe.Expire(ctx, presenceListKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to upsert presence: %w", err)
	}

	return nil
}

func (r repo) UpdatePresence(ctx context.Context, params *room.UpdatePresenceParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	presenceKey := r.getPresenceKey(params.RoomCode, params.Username)

	cmd := r.rc.Exists(ctx, presenceKey)
	if err := cmd.Err(); err != nil {
		return fmt.Errorf("failed to update presence: %w", err)
	}

	if cmd.Val() == 0 {
		return room.ErrPresenceNotFound
	}

	if err := r.rc.HSet(ctx, presenceKey,
		"last_seen", params.LastSeen,
		"is_active", params.IsActive,
	).Err(); err != nil {
		return fmt.Errorf("failed to update presence: %w", err)
	}

	r.rc.Expire(ctx, presenceKey, r.expireDuration)

	return nil
}

// MarkStalePresence lazily flips is_active off for records whose last_seen
// is older than the cutoff. Any client reloading the roster performs this
// sweep first.
func (r repo) MarkStalePresence(ctx context.Context, roomCode string, olderThan int64) error {
	usernames, err := r.rc.ZRange(ctx, r.getPresenceListKey(roomCode), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to mark stale presence: %w", err)
	}

	for _, username := range usernames {
		presenceKey := r.getPresenceKey(roomCode, username)
		lastSeen, err := r.rc.HGet(ctx, presenceKey, "last_seen").Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("failed to mark stale presence: %w", err)
		}

		if lastSeen < olderThan {
			if err := r.rc.HSet(ctx, presenceKey, "is_active", false).Err(); err != nil {
				return fmt.Errorf("failed to mark stale presence: %w", err)
			}
		}
	}

	return nil
}

// GetActivePresence returns active records ordered by join sequence.
func (r repo) GetActivePresence(ctx context.Context, roomCode string) ([]room.Presence, error) {
	usernames, err := r.rc.ZRange(ctx, r.getPresenceListKey(roomCode), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get active presence: %w", err)
	}

	records := make([]room.Presence, 0, len(usernames))
	for _, username := range usernames {
		var record room.Presence
		if err := r.rc.HGetAll(ctx, r.getPresenceKey(roomCode, username)).Scan(&record); err != nil {
			return nil, fmt.Errorf("failed to get active presence: %w", err)
		}

		if record.Username == "" || !record.IsActive {
			continue
		}

		records = append(records, record)
	}

	return records, nil
}
