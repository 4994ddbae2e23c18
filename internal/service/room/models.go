package room

import (
	"github.com/watchroom/engine/internal/repository/room"
	"github.com/watchroom/engine/pkg/timefmt"
)

// Descriptor is the authoritative playback state of a room as last known
// to one client. last_action_by identifies the originator and is what
// echo suppression keys on.
type Descriptor struct {
	IsPlaying    bool    `json:"is_playing"`
	VideoTime    float64 `json:"video_time"`
	PlaybackRate float64 `json:"playback_rate"`
	LastActionBy string  `json:"last_action_by"`
	UpdatedAt    int64   `json:"updated_at"`
}

type Room struct {
	RoomCode string `json:"room_code"`
	Descriptor
}

type Member struct {
	Username string `json:"username"`
	UserID   string `json:"user_id"`
	LastSeen int64  `json:"last_seen"`
}

type Message struct {
	ID        string `json:"id"`
	RoomCode  string `json:"room_code"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	UserID    string `json:"user_id"`
	CreatedAt int64  `json:"created_at"`
}

type LastWatched struct {
	RoomCode  string  `json:"room_code"`
	VideoTime float64 `json:"video_time"`
	// VideoTimeDisplay is VideoTime rendered for the resume list, e.g. "1:02:45".
	VideoTimeDisplay string `json:"video_time_display"`
	VideoName        string `json:"video_name"`
	VideoPath        string `json:"video_path"`
	UpdatedAt        int64  `json:"updated_at"`
}

func toRoom(rm room.Room) Room {
	return Room{
		RoomCode: rm.RoomCode,
		Descriptor: Descriptor{
			IsPlaying:    rm.IsPlaying,
			VideoTime:    rm.VideoTime,
			PlaybackRate: rm.PlaybackRate,
			LastActionBy: rm.LastActionBy,
			UpdatedAt:    rm.UpdatedAt,
		},
	}
}

func toMember(record room.Presence) Member {
	return Member{
		Username: record.Username,
		UserID:   record.UserID,
		LastSeen: record.LastSeen,
	}
}

func toMessage(row room.Message) Message {
	return Message{
		ID:        row.ID,
		RoomCode:  row.RoomCode,
		Username:  row.Username,
		Message:   row.Message,
		UserID:    row.UserID,
		CreatedAt: row.CreatedAt,
	}
}

func toLastWatched(record room.LastWatched) LastWatched {
	return LastWatched{
		RoomCode:         record.RoomCode,
		VideoTime:        record.VideoTime,
		VideoTimeDisplay: timefmt.Format(record.VideoTime),
		VideoName:        record.VideoName,
		VideoPath:        record.VideoPath,
		UpdatedAt:        record.UpdatedAt,
	}
}
