package controller

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pubsubRedis "github.com/watchroom/engine/internal/repository/pubsub/redis"
	roomRedis "github.com/watchroom/engine/internal/repository/room/redis"
	"github.com/watchroom/engine/internal/service/room"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	roomRepo := roomRedis.NewRepo(rc, logger, time.Hour)
	bus := pubsubRedis.NewBus(rc, logger)
	roomService := room.NewService(roomRepo, bus, &room.Config{}, logger)

	srv := httptest.NewServer(NewController(roomService, logger).GetMux())
	t.Cleanup(srv.Close)

	return srv
}

func dialRoom(t *testing.T, srv *httptest.Server, roomCode, username string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/rooms/" + roomCode
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{
		"Wr-Username": []string{username},
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

type output struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// readUntil drains the connection until a message of the wanted type
// arrives, skipping roster and state pushes interleaved by other clients.
func readUntil(t *testing.T, conn *websocket.Conn, messageType string) json.RawMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg output
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", messageType)
		if msg.Type == messageType {
			return msg.Payload
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, messageType string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": messageType, "payload": payload}))
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLastWatchedRequiresUserID(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/last-watched")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJoinRoomHandshake(t *testing.T) {
	srv := newTestServer(t)

	conn := dialRoom(t, srv, "ABC123", "alice")

	payload := readUntil(t, conn, "ROOM_JOINED")

	var joined struct {
		Room struct {
			RoomCode     string  `json:"room_code"`
			IsPlaying    bool    `json:"is_playing"`
			PlaybackRate float64 `json:"playback_rate"`
		} `json:"room"`
		Username string `json:"username"`
		UserID   string `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(payload, &joined))
	assert.Equal(t, "ABC123", joined.Room.RoomCode)
	assert.False(t, joined.Room.IsPlaying)
	assert.Equal(t, 1.0, joined.Room.PlaybackRate)
	assert.Equal(t, "alice", joined.Username)
	assert.NotEmpty(t, joined.UserID)
}

func TestPlaybackCommandsReachPeers(t *testing.T) {
	srv := newTestServer(t)

	connA := dialRoom(t, srv, "ABC123", "alice")
	readUntil(t, connA, "ROOM_JOINED")

	connB := dialRoom(t, srv, "ABC123", "bob")
	readUntil(t, connB, "ROOM_JOINED")

	// bob's UI reports a play at 30s; alice's player must be commanded to
	// catch up and start
	send(t, connB, "PLAY", map[string]any{"time": 30.0})

	seekPayload := readUntil(t, connA, "PLAYER_SEEK")
	var seek struct {
		Time float64 `json:"time"`
	}
	require.NoError(t, json.Unmarshal(seekPayload, &seek))
	assert.Equal(t, 30.0, seek.Time)

	readUntil(t, connA, "PLAYER_PLAY")
}

func TestChatReachesPeers(t *testing.T) {
	srv := newTestServer(t)

	connA := dialRoom(t, srv, "ABC123", "alice")
	readUntil(t, connA, "ROOM_JOINED")

	connB := dialRoom(t, srv, "ABC123", "bob")
	readUntil(t, connB, "ROOM_JOINED")

	send(t, connB, "CHAT", map[string]any{"message": "hello"})

	payload := readUntil(t, connA, "CHAT_MESSAGE")
	var msg struct {
		Username string `json:"username"`
		Message  string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.Equal(t, "bob", msg.Username)
	assert.Equal(t, "hello", msg.Message)
}

func TestRosterPushOnJoin(t *testing.T) {
	srv := newTestServer(t)

	connA := dialRoom(t, srv, "ABC123", "alice")
	readUntil(t, connA, "ROOM_JOINED")

	dialRoom(t, srv, "ABC123", "bob")

	// alice gets a fresh roster push for every presence broadcast; read
	// until bob shows up, bounded by the read deadline
	for {
		payload := readUntil(t, connA, "ROSTER")
		var roster struct {
			Members []struct {
				Username string `json:"username"`
			} `json:"members"`
		}
		require.NoError(t, json.Unmarshal(payload, &roster))

		if len(roster.Members) == 2 {
			assert.Equal(t, "alice", roster.Members[0].Username)
			assert.Equal(t, "bob", roster.Members[1].Username)
			return
		}
	}
}
