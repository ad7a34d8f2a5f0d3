package wire

import (
	"encoding/json"
	"fmt"
)

// Message types exchanged with the referee server.
const (
	TypeRegister     = "register"
	TypeRegisterAck  = "register_ack"
	TypeRegisterNack = "register_nack"
	TypeGameStart    = "game_start"
	TypeYourTurn     = "your_turn"
	TypeInvalidMove  = "invalid_move"
	TypeGameOver     = "game_over"
	TypeMove         = "move"
)

// Message is any inbound server message. Board, when present, replaces the
// client's snapshot regardless of Type.
type Message struct {
	Type        string         `json:"type"`
	Board       []string       `json:"board,omitempty"`
	FirstPlayer string         `json:"first_player,omitempty"`
	Scores      map[string]int `json:"scores,omitempty"`
	Reason      string         `json:"reason,omitempty"`
}

func (m Message) HasBoard() bool { return len(m.Board) > 0 }

type RegisterRequest struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

func NewRegister(username string) RegisterRequest {
	return RegisterRequest{Type: TypeRegister, Username: username}
}

// MoveRequest carries 1-indexed coordinates: sx/tx are rows, sy/ty columns.
// All zero means pass.
type MoveRequest struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	SX       int    `json:"sx"`
	SY       int    `json:"sy"`
	TX       int    `json:"tx"`
	TY       int    `json:"ty"`
}

func NewMove(username string, sx, sy, tx, ty int) MoveRequest {
	return MoveRequest{Type: TypeMove, Username: username, SX: sx, SY: sy, TX: tx, TY: ty}
}

func (m MoveRequest) IsPass() bool { return m.SX == 0 && m.SY == 0 && m.TX == 0 && m.TY == 0 }

// ProtocolError reports a line that is not a usable server message.
type ProtocolError struct {
	Line string
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: %v: %q", e.Err, e.Line)
	}
	return fmt.Sprintf("protocol: message without type: %q", e.Line)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Decode parses one JSON line into a Message.
func Decode(line []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(line, &m); err != nil {
		return Message{}, &ProtocolError{Line: string(line), Err: err}
	}
	if m.Type == "" {
		return Message{}, &ProtocolError{Line: string(line)}
	}
	return m, nil
}
