package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/park285/ataxx-client/internal/board"
	"github.com/park285/ataxx-client/internal/display"
	"github.com/park285/ataxx-client/internal/engine"
	"github.com/park285/ataxx-client/internal/obslog"
	"github.com/park285/ataxx-client/internal/report"
	"github.com/park285/ataxx-client/internal/store"
)

// boardcheck prints the move the engine would send for a position. The
// position comes from eight rows on stdin or, with -game, from the live store.
// With -history it prints a player's archived games instead.
func main() {
	os.Exit(run())
}

func run() int {
	sideFlag := flag.String("side", "R", "side to move: R or B (a -game snapshot overrides it)")
	shallow := flag.Int("shallow", engine.DefaultShallowDepth, "depth when the root has many moves")
	deep := flag.Int("deep", engine.DefaultDeepDepth, "depth otherwise")
	threshold := flag.Int("threshold", engine.DefaultBranchingThreshold, "root move count above which the shallow depth is used")
	blocked := flag.Bool("blocked", false, "treat '#' cells as impassable")
	timeout := flag.Duration("timeout", 0, "stop between root moves after this long (0 = none)")
	pngPath := flag.String("png", "", "also write the LED panel image here")
	verbose := flag.Bool("v", false, "log the search through the LOG_* logger settings")
	gameID := flag.String("game", "", "read the position of this game from the live store")
	redisURL := flag.String("redis", os.Getenv("REDIS_URL"), "live store url for -game")
	history := flag.String("history", "", "print the archived games of this player and exit")
	limit := flag.Int("limit", 10, "games shown by -history")
	dbURL := flag.String("db", os.Getenv("DATABASE_URL"), "archive database url for -history")
	flag.Parse()

	if *verbose {
		if err := obslog.InitFromEnv(); err != nil {
			log.Printf("logger init error: %v", err)
			return 1
		}
		defer func() { _ = obslog.L().Sync() }()
	}

	ctx := context.Background()
	if *history != "" {
		return printHistory(ctx, *dbURL, *history, *limit)
	}

	side, ok := parseSide(*sideFlag)
	if !ok {
		log.Printf("side must be R or B, got %q", *sideFlag)
		return 2
	}

	var b board.Board
	var err error
	if *gameID != "" {
		b, side, err = loadLive(ctx, *redisURL, *gameID, side)
	} else {
		b, err = readRows(os.Stdin)
	}
	if err != nil {
		log.Printf("board error: %v", err)
		return 1
	}

	p := engine.Policy{BranchingThreshold: *threshold, ShallowDepth: *shallow, DeepDepth: *deep, BlockedImpassable: *blocked}
	eng, err := engine.NewEngine(p, obslog.Named("engine"))
	if err != nil {
		log.Printf("policy error: %v", err)
		return 2
	}

	searchCtx := ctx
	if *timeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}
	res := eng.Choose(searchCtx, engine.Request{Board: b, Side: side})

	fmt.Println(b.String())
	score := display.ScoreOf(b)
	fmt.Printf("R:%02d   B:%02d\n", score.First, score.Second)
	fmt.Printf("side=%s move=%s pass=%v score=%d depth=%d root_moves=%d scored=%d nodes=%d truncated=%v elapsed=%s\n",
		side, res.Command, res.Pass, res.Score, res.Depth, res.RootMoves, res.Scored, res.Nodes, res.Truncated, res.Duration.Round(time.Microsecond))

	if *pngPath != "" {
		if err := display.NewPNGSink(*pngPath, nil).Show(ctx, b, score); err != nil {
			log.Printf("png error: %v", err)
			return 1
		}
	}
	return 0
}

func parseSide(v string) (board.Side, bool) {
	sym := strings.ToUpper(strings.TrimSpace(v))
	if len(sym) != 1 {
		return board.First, false
	}
	return board.SideFromSymbol(sym[0])
}

func readRows(r io.Reader) (board.Board, error) {
	var rows []string
	sc := bufio.NewScanner(r)
	for sc.Scan() && len(rows) < board.Size {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		rows = append(rows, line)
	}
	return board.ParseRows(rows)
}

// loadLive reads the latest snapshot of a running game and lists its moves.
func loadLive(ctx context.Context, redisURL, id string, fallback board.Side) (board.Board, board.Side, error) {
	live, err := store.NewLiveStore(redisURL)
	if err != nil {
		return board.Board{}, fallback, err
	}
	defer live.Close()

	snap, err := live.LoadSnapshot(ctx, id)
	if err != nil {
		return board.Board{}, fallback, err
	}
	if snap == nil {
		return board.Board{}, fallback, fmt.Errorf("%w: %s", store.ErrGameNotFound, id)
	}
	side := fallback
	if len(snap.Side) == 1 {
		if s, ok := board.SideFromSymbol(snap.Side[0]); ok {
			side = s
		}
	}
	moves, err := live.Moves(ctx, id)
	if err != nil {
		return board.Board{}, side, err
	}
	fmt.Printf("game=%s player=%s status=%s turns=%d updated=%s\n",
		snap.GameID, snap.Player, snap.Status, snap.Turns, snap.UpdatedAt.Format(time.RFC3339))
	for i, mv := range moves {
		fmt.Printf("  %3d. %s\n", i+1, mv)
	}
	b, err := board.ParseRows(snap.Board)
	return b, side, err
}

func printHistory(ctx context.Context, dbURL, player string, limit int) int {
	if strings.TrimSpace(dbURL) == "" {
		log.Printf("-history needs -db or DATABASE_URL")
		return 2
	}
	repo, err := store.NewPostgresRepository(dbURL)
	if err != nil {
		log.Printf("archive error: %v", err)
		return 1
	}
	defer repo.Close()
	if err := report.WriteHistory(ctx, os.Stdout, repo, player, limit); err != nil {
		log.Printf("history error: %v", err)
		return 1
	}
	return 0
}
