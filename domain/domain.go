// Package domain holds the types and error kinds shared by the gateway and
// the inference worker.
package domain

// Outbound push commands. Every server-to-client frame is a JSON envelope
// {"command": ..., ...}.
const (
	CmdEnterRoom = "enter_room"
	CmdLeaveRoom = "leave_room"
	CmdGameStart = "game_start"
	CmdPredict   = "predict"
	CmdImgSave   = "img_save"
)

// Presence is the per-connection record in the user registry. RoomID and
// UserName are empty until the connection joins a room.
type Presence struct {
	ConnectionID string
	RoomID       string
	UserName     string
}

// InRoom reports whether the connection has joined a room.
func (p Presence) InRoom() bool {
	return p.RoomID != ""
}

// Submission is the sketch payload carried verbatim from the websocket
// through the queue to the worker. ImgB64 is a data URL; the PNG bytes
// follow the first comma.
type Submission struct {
	ConnectionID string `json:"connection_id"`
	ImgB64       string `json:"img_b64"`
	Odai         string `json:"odai"`
	IsFin        bool   `json:"is_fin"`
	ImgID        string `json:"img_id"`
}

// ScoreRecord is written once per finalized stroke and never mutated.
type ScoreRecord struct {
	ConnectionID string
	StrokeID     string
	ArtifactKey  string
	Score        float64
}
