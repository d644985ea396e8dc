package game

import "github.com/tsuji-tomonori/RakugakiBattleOnLine/domain"

// EnterRoomMessage notifies room members of a join. Existing members get
// the joiner's name; the joiner gets one message per existing member.
type EnterRoomMessage struct {
	Command string `json:"command"`
	Name    string `json:"name"`
}

func enterRoomMessage(name string) EnterRoomMessage {
	return EnterRoomMessage{Command: domain.CmdEnterRoom, Name: name}
}

// LeaveRoomMessage notifies remaining members of a departure.
type LeaveRoomMessage struct {
	Command string `json:"command"`
	Name    string `json:"name"`
}

func leaveRoomMessage(name string) LeaveRoomMessage {
	return LeaveRoomMessage{Command: domain.CmdLeaveRoom, Name: name}
}

// GameStartMessage carries the sampled prompts and the round timer.
type GameStartMessage struct {
	Command string   `json:"command"`
	Odai    []string `json:"odai"`
	NTime   int      `json:"n_time"`
}

func gameStartMessage(odai []string, nTimeSec int) GameStartMessage {
	return GameStartMessage{Command: domain.CmdGameStart, Odai: odai, NTime: nTimeSec}
}
