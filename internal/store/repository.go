package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/park285/ataxx-client/internal/domain"
)

// Repository archives finished games.
type Repository interface {
	SaveResult(ctx context.Context, r *domain.GameResult) error
	RecentResults(ctx context.Context, player string, limit int) ([]*domain.GameResult, error)
	Record(ctx context.Context, player string) (*domain.PlayerRecord, error)
	Close() error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(databaseURL string) (*PostgresRepository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

const schemaSQL = `CREATE TABLE IF NOT EXISTS ataxx_games (
    game_id        TEXT PRIMARY KEY,
    player         TEXT NOT NULL,
    opponent       TEXT NOT NULL DEFAULT '',
    side           TEXT NOT NULL,
    player_score   INTEGER NOT NULL,
    opponent_score INTEGER NOT NULL,
    outcome        TEXT NOT NULL,
    scores         JSONB NOT NULL,
    moves          TEXT[] NOT NULL,
    passes         INTEGER NOT NULL DEFAULT 0,
    rejected       INTEGER NOT NULL DEFAULT 0,
    final_board    TEXT[],
    started_at     TIMESTAMPTZ NOT NULL,
    ended_at       TIMESTAMPTZ NOT NULL,
    duration_ms    BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS ataxx_games_player_ended ON ataxx_games (player, ended_at DESC);`

// Migrate creates the results table when missing.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schemaSQL)
	return err
}

// SaveResult upserts a finished game keyed by its id.
func (r *PostgresRepository) SaveResult(ctx context.Context, g *domain.GameResult) error {
	if r == nil || r.db == nil || g == nil {
		return nil
	}
	scoresRaw, err := json.Marshal(g.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	duration := g.EndedAt.Sub(g.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}
	moves := g.Moves
	if moves == nil {
		moves = []string{}
	}

	q := `INSERT INTO ataxx_games (
        game_id, player, opponent, side, player_score, opponent_score,
        outcome, scores, moves, passes, rejected, final_board,
        started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
      ) ON CONFLICT (game_id) DO UPDATE SET
        opponent=EXCLUDED.opponent,
        player_score=EXCLUDED.player_score,
        opponent_score=EXCLUDED.opponent_score,
        outcome=EXCLUDED.outcome,
        scores=EXCLUDED.scores,
        moves=EXCLUDED.moves,
        passes=EXCLUDED.passes,
        rejected=EXCLUDED.rejected,
        final_board=EXCLUDED.final_board,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err = r.db.ExecContext(ctx, q,
		g.ID, g.Player, g.Opponent, g.Side,
		g.PlayerScore, g.OpponentScore, string(g.Outcome), string(scoresRaw),
		pq.Array(moves), g.Passes, g.Rejected, pq.Array(g.FinalBoard),
		g.StartedAt, g.EndedAt, duration,
	)
	return err
}

func (r *PostgresRepository) RecentResults(ctx context.Context, player string, limit int) ([]*domain.GameResult, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `SELECT game_id, player, opponent, side, player_score, opponent_score,
        outcome, scores, moves, passes, rejected, final_board, started_at, ended_at, duration_ms
      FROM ataxx_games WHERE player = $1 ORDER BY ended_at DESC LIMIT $2`, strings.TrimSpace(player), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.GameResult
	for rows.Next() {
		var (
			g          domain.GameResult
			outcome    string
			scoresRaw  []byte
			durationMS int64
		)
		if err := rows.Scan(&g.ID, &g.Player, &g.Opponent, &g.Side, &g.PlayerScore, &g.OpponentScore,
			&outcome, &scoresRaw, pq.Array(&g.Moves), &g.Passes, &g.Rejected, pq.Array(&g.FinalBoard),
			&g.StartedAt, &g.EndedAt, &durationMS); err != nil {
			return nil, err
		}
		g.Outcome = domain.Outcome(outcome)
		g.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal(scoresRaw, &g.Scores); err != nil {
			return nil, fmt.Errorf("decode scores for %s: %w", g.ID, err)
		}
		out = append(out, &g)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Record(ctx context.Context, player string) (*domain.PlayerRecord, error) {
	rec := &domain.PlayerRecord{Player: strings.TrimSpace(player)}
	var last sql.NullTime
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*),
        COUNT(*) FILTER (WHERE outcome = 'win'),
        COUNT(*) FILTER (WHERE outcome = 'loss'),
        COUNT(*) FILTER (WHERE outcome = 'draw'),
        MAX(ended_at)
      FROM ataxx_games WHERE player = $1`, rec.Player).Scan(&rec.Games, &rec.Wins, &rec.Losses, &rec.Draws, &last)
	if err != nil {
		return nil, err
	}
	if last.Valid {
		rec.LastPlayedAt = last.Time
	}
	return rec, nil
}
