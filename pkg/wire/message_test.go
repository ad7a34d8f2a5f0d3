package wire

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeGameOver(t *testing.T) {
	m, err := Decode([]byte(`{"type":"game_over","scores":{"alice":40,"bob":24},"board":["RRRRRRRR"]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.Type != TypeGameOver || m.Scores["alice"] != 40 || m.Scores["bob"] != 24 || !m.HasBoard() {
		t.Fatalf("unexpected message: %+v", m)
	}
}

func TestDecodeRejectsMissingType(t *testing.T) {
	_, err := Decode([]byte(`{"board":[]}`))
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if _, err := Decode([]byte(`not json`)); !errors.As(err, &pe) || pe.Err == nil {
		t.Fatalf("expected wrapped json error, got %v", err)
	}
}

func TestMoveRequestFieldNames(t *testing.T) {
	data, err := json.Marshal(NewMove("alice", 1, 2, 3, 4))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"type":"move","username":"alice","sx":1,"sy":2,"tx":3,"ty":4}`
	if string(data) != want {
		t.Fatalf("got %s, want %s", data, want)
	}
	if !NewMove("alice", 0, 0, 0, 0).IsPass() {
		t.Fatalf("zero move should be a pass")
	}
}
