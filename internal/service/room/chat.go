package room

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/watchroom/engine/internal/repository/room"
)

// ChatLog is the append-only message view for one client. The sender
// appends its own message optimistically, so inbound broadcasts are
// deduplicated by message id.
type ChatLog struct {
	repo      iRoomRepo
	bus       iEventBus
	roomCode  string
	username  string
	userID    string
	logger    *slog.Logger
	onMessage func(Message)

	mu       sync.Mutex
	messages []Message
	seen     map[string]struct{}
}

func newChatLog(s service, roomCode, username, userID string, onMessage func(Message)) *ChatLog {
	return &ChatLog{
		repo:      s.roomRepo,
		bus:       s.bus,
		roomCode:  roomCode,
		username:  username,
		userID:    userID,
		logger:    s.logger,
		onMessage: onMessage,
		seen:      make(map[string]struct{}),
	}
}

// Run loads the full history (chat volume per room is small, no
// pagination) and subscribes to the room's chat topic.
func (c *ChatLog) Run(ctx context.Context) error {
	history, err := c.repo.GetMessages(ctx, c.roomCode)
	if err != nil {
		c.logger.InfoContext(ctx, "failed to load chat history", "error", err)
	} else {
		c.mu.Lock()
		for _, row := range history {
			msg := toMessage(row)
			c.seen[msg.ID] = struct{}{}
			c.messages = append(c.messages, msg)
		}
		c.mu.Unlock()
	}

	sub, err := c.bus.Subscribe(ctx, chatTopic(c.roomCode))
	if err != nil {
		return fmt.Errorf("failed to subscribe to chat topic: %w", err)
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
				if event.Event != newMessageEvent {
					continue
				}

				var msg Message
				if err := json.Unmarshal(event.Payload, &msg); err != nil {
					c.logger.DebugContext(ctx, "dropping malformed chat message", "error", err)
					continue
				}

				c.append(msg)
			}
		}
	}()

	return nil
}

// Send rejects blank text before any network call, persists the message,
// echoes it locally, then broadcasts it.
func (c *ChatLog) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	row, err := c.repo.AddMessage(ctx, &room.AddMessageParams{
		RoomCode: c.roomCode,
		Username: c.username,
		Message:  text,
		UserID:   c.userID,
	})
	if err != nil {
		c.logger.InfoContext(ctx, "failed to send message", "error", err)
		return fmt.Errorf("failed to send message: %w", err)
	}

	msg := toMessage(row)
	c.append(msg)

	if err := c.bus.Publish(ctx, chatTopic(c.roomCode), newMessageEvent, msg); err != nil {
		// peers still get the row on their next history load
		c.logger.InfoContext(ctx, "failed to broadcast message", "error", err)
	}

	return nil
}

func (c *ChatLog) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	messages := make([]Message, len(c.messages))
	copy(messages, c.messages)

	return messages
}

func (c *ChatLog) append(msg Message) {
	c.mu.Lock()
	if _, exists := c.seen[msg.ID]; exists {
		c.mu.Unlock()
		return
	}
	c.seen[msg.ID] = struct{}{}
	c.messages = append(c.messages, msg)
	c.mu.Unlock()

	if c.onMessage != nil {
		c.onMessage(msg)
	}
}
