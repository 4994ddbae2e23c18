package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/watchroom/engine/internal/repository/room"
)

func (r repo) getMessagesKey(roomCode string) string {
	return "room:" + roomCode + ":messages"
}

// AddMessage assigns the message id and timestamp and returns the stored
// row. Rows are appended in send order, so a full range read comes back
// ordered by created_at ascending.
func (r repo) AddMessage(ctx context.Context, params *room.AddMessageParams) (room.Message, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	msg := room.Message{
		ID:        uuid.NewString(),
		RoomCode:  params.RoomCode,
		Username:  params.Username,
		Message:   params.Message,
		UserID:    params.UserID,
		CreatedAt: time.Now().UnixMilli(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return room.Message{}, fmt.Errorf("failed to add message: %w", err)
	}

	messagesKey := r.getMessagesKey(params.RoomCode)
	if err := r.rc.RPush(ctx, messagesKey, data).Err(); err != nil {
		return room.Message{}, fmt.Errorf("failed to add message: %w", err)
	}

	r.rc.Expire(ctx, messagesKey, r.expireDuration)

	return msg, nil
}

func (r repo) GetMessages(ctx context.Context, roomCode string) ([]room.Message, error) {
	rows, err := r.rc.LRange(ctx, r.getMessagesKey(roomCode), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	messages := make([]room.Message, 0, len(rows))
	for _, row := range rows {
		var msg room.Message
		if err := json.Unmarshal([]byte(row), &msg); err != nil {
			return nil, fmt.Errorf("failed to get messages: %w", err)
		}

		messages = append(messages, msg)
	}

	return messages, nil
}
