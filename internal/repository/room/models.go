package room

// Room is the authoritative playback row for one room code. Updates are
// last-writer-wins; there is no version column.
type Room struct {
	RoomCode     string  `redis:"room_code" json:"room_code"`
	IsPlaying    bool    `redis:"is_playing" json:"is_playing"`
	VideoTime    float64 `redis:"video_time" json:"video_time"`
	PlaybackRate float64 `redis:"playback_rate" json:"playback_rate"`
	LastActionBy string  `redis:"last_action_by" json:"last_action_by"`
	UpdatedAt    int64   `redis:"updated_at" json:"updated_at"`
}

type Presence struct {
	Username string `redis:"username" json:"username"`
	UserID   string `redis:"user_id" json:"user_id"`
	LastSeen int64  `redis:"last_seen" json:"last_seen"`
	IsActive bool   `redis:"is_active" json:"is_active"`
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
	RoomCode  string  `redis:"room_code" json:"room_code"`
	VideoTime float64 `redis:"video_time" json:"video_time"`
	VideoName string  `redis:"video_name" json:"video_name"`
	VideoPath string  `redis:"video_path" json:"video_path"`
	UpdatedAt int64   `redis:"updated_at" json:"updated_at"`
}
