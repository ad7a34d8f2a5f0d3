package domain

import "time"

type Outcome string

const (
	OutcomeWin     Outcome = "win"
	OutcomeLoss    Outcome = "loss"
	OutcomeDraw    Outcome = "draw"
	OutcomeUnknown Outcome = "unknown"
)

// GameResult is the archived summary of one finished game from this client's seat.
type GameResult struct {
	ID            string         `json:"id"`
	Player        string         `json:"player"`
	Opponent      string         `json:"opponent,omitempty"`
	Side          string         `json:"side"`
	Scores        map[string]int `json:"scores"`
	PlayerScore   int            `json:"player_score"`
	OpponentScore int            `json:"opponent_score"`
	Outcome       Outcome        `json:"outcome"`
	Moves         []string       `json:"moves"`
	Passes        int            `json:"passes"`
	Rejected      int            `json:"rejected"`
	FinalBoard    []string       `json:"final_board,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	EndedAt       time.Time      `json:"ended_at"`
	Duration      time.Duration  `json:"duration"`
}

// PlayerRecord aggregates archived results for one player name.
type PlayerRecord struct {
	Player       string
	Games        int
	Wins         int
	Losses       int
	Draws        int
	LastPlayedAt time.Time
}

// DecideOutcome compares player's score with the best other score.
// A player missing from scores yields OutcomeUnknown.
func DecideOutcome(scores map[string]int, player string) (Outcome, string, int) {
	mine, ok := scores[player]
	if !ok {
		return OutcomeUnknown, "", 0
	}
	opponent, best, found := "", 0, false
	for name, s := range scores {
		if name == player {
			continue
		}
		if !found || s > best || (s == best && name < opponent) {
			opponent, best, found = name, s, true
		}
	}
	switch {
	case !found:
		return OutcomeUnknown, "", 0
	case mine > best:
		return OutcomeWin, opponent, best
	case mine < best:
		return OutcomeLoss, opponent, best
	default:
		return OutcomeDraw, opponent, best
	}
}

// Add folds r into the record.
func (p *PlayerRecord) Add(r *GameResult) {
	p.Games++
	switch r.Outcome {
	case OutcomeWin:
		p.Wins++
	case OutcomeLoss:
		p.Losses++
	case OutcomeDraw:
		p.Draws++
	}
	if r.EndedAt.After(p.LastPlayedAt) {
		p.LastPlayedAt = r.EndedAt
	}
}
