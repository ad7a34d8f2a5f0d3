package report

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/park285/ataxx-client/internal/domain"
	"github.com/park285/ataxx-client/internal/store"
)

func TestWriteHistory(t *testing.T) {
	repo := store.NewMemoryRepository()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, o := range []domain.Outcome{domain.OutcomeWin, domain.OutcomeLoss, domain.OutcomeWin} {
		r := &domain.GameResult{
			ID: "g" + string(rune('a'+i)), Player: "alice", Opponent: "bob", Side: "R",
			PlayerScore: 30 + i, OpponentScore: 20, Outcome: o,
			Moves: []string{"1 1 2 2"}, EndedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := repo.SaveResult(ctx, r); err != nil {
			t.Fatalf("SaveResult: %v", err)
		}
	}

	var out bytes.Buffer
	if err := WriteHistory(ctx, &out, repo, "alice", 2); err != nil {
		t.Fatalf("WriteHistory: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected tally plus 2 games, got %q", out.String())
	}
	if lines[0] != "alice: 3 games, 2W 1L 0D" {
		t.Fatalf("tally line %q", lines[0])
	}
	if !strings.Contains(lines[1], "2026-05-01T11:00:00Z") || !strings.Contains(lines[1], "WIN") || !strings.Contains(lines[1], "32:20 vs bob") {
		t.Fatalf("newest game should come first: %q", lines[1])
	}
	if !strings.Contains(lines[2], "LOSS") {
		t.Fatalf("second line %q", lines[2])
	}
}

type failingHistory struct{}

func (failingHistory) RecentResults(context.Context, string, int) ([]*domain.GameResult, error) {
	return nil, nil
}

func (failingHistory) Record(context.Context, string) (*domain.PlayerRecord, error) {
	return nil, errors.New("db down")
}

func TestWriteHistoryError(t *testing.T) {
	var out bytes.Buffer
	if err := WriteHistory(context.Background(), &out, failingHistory{}, "alice", 5); err == nil || out.Len() != 0 {
		t.Fatalf("expected error and no output, got %v %q", err, out.String())
	}
}
