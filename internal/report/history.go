package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/park285/ataxx-client/internal/domain"
)

// HistorySource is the read side of the game archive.
type HistorySource interface {
	RecentResults(ctx context.Context, player string, limit int) ([]*domain.GameResult, error)
	Record(ctx context.Context, player string) (*domain.PlayerRecord, error)
}

// WriteHistory prints player's tally followed by up to limit recent games,
// newest first.
func WriteHistory(ctx context.Context, w io.Writer, src HistorySource, player string, limit int) error {
	rec, err := src.Record(ctx, player)
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}
	games, err := src.RecentResults(ctx, player, limit)
	if err != nil {
		return fmt.Errorf("load recent results: %w", err)
	}

	fmt.Fprintf(w, "%s: %d games, %dW %dL %dD\n", rec.Player, rec.Games, rec.Wins, rec.Losses, rec.Draws)
	for _, g := range games {
		opp := g.Opponent
		if opp == "" {
			opp = "?"
		}
		fmt.Fprintf(w, "  %s  %-4s %s %d:%d vs %s  moves=%d passes=%d rejected=%d\n",
			g.EndedAt.UTC().Format(time.RFC3339), strings.ToUpper(string(g.Outcome)), g.Side,
			g.PlayerScore, g.OpponentScore, opp, len(g.Moves), g.Passes, g.Rejected)
	}
	return nil
}
