package room

type CreateRoomParams struct {
	RoomCode     string
	IsPlaying    bool
	VideoTime    float64
	PlaybackRate float64
	LastActionBy string
	UpdatedAt    int64
}

type UpdateRoomStateParams struct {
	RoomCode     string
	IsPlaying    bool
	VideoTime    float64
	PlaybackRate float64
	LastActionBy string
	UpdatedAt    int64
}

type UpsertPresenceParams struct {
	RoomCode string
	Username string
	UserID   string
	LastSeen int64
	IsActive bool
}

type UpdatePresenceParams struct {
	RoomCode string
	Username string
	LastSeen int64
	IsActive bool
}

type AddMessageParams struct {
	RoomCode string
	Username string
	Message  string
	UserID   string
}

type UpsertLastWatchedParams struct {
	UserID    string
	RoomCode  string
	VideoTime float64
	VideoName string
	VideoPath string
	UpdatedAt int64
}
