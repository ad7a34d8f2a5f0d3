package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/park285/ataxx-client/internal/clientbuilder"
	appcfg "github.com/park285/ataxx-client/internal/config"
	"github.com/park285/ataxx-client/internal/domain"
	"github.com/park285/ataxx-client/internal/msgcat"
	"github.com/park285/ataxx-client/internal/obslog"
	"github.com/park285/ataxx-client/internal/session"
	"github.com/park285/ataxx-client/internal/store"
	"github.com/park285/ataxx-client/internal/transport"
	"github.com/park285/ataxx-client/pkg/wire"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup always happens.
func run() int {
	ip := flag.String("ip", "", "server ip address (overrides SERVER_ADDR host)")
	port := flag.String("port", "", "server port (overrides SERVER_ADDR port)")
	username := flag.String("username", "", "player name (overrides PLAYER_NAME)")
	manual := flag.Bool("manual", false, "read moves from stdin instead of searching")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s -ip <ip_address> -port <port> -username <name> [-manual]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := obslog.InitFromEnv(); err != nil {
		log.Printf("logger init error: %v", err)
		return 1
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := appcfg.LoadWithOverrides(appcfg.Overrides{IP: *ip, Port: *port, Username: *username, Manual: *manual})
	if err != nil {
		flag.Usage()
		log.Printf("config error: %v", err)
		return 2
	}

	deps, err := clientbuilder.New(cfg, logger)
	if err != nil {
		logger.Error("client_init_failed", zap.Error(err))
		return 1
	}
	defer deps.Close()
	msgs := deps.Messages

	deps.Conn.OnStateChange(func(state transport.State) {
		logger.Info("transport_state", zap.String("state", state.String()))
	})
	deps.Conn.OnMessage(func(msg *wire.Message) {
		switch msg.Type {
		case wire.TypeRegisterAck:
			fmt.Println(msgs.RenderOr("client.registered", nil, "[client] registered"))
		case wire.TypeGameStart:
			side := "B"
			if msg.FirstPlayer == cfg.PlayerName {
				side = "R"
			}
			fmt.Println(msgs.RenderOr("client.game_started", map[string]any{"Side": side}, "[client] game started"))
		}
	})

	sess, err := session.New(cfg.PlayerName, deps.SessionDeps())
	if err != nil {
		logger.Error("session_init_failed", zap.Error(err))
		return 1
	}

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, runErr := sess.Run(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	_ = deps.Conn.Close(closeCtx)
	cancel()

	switch {
	case runErr == nil:
		printScores(msgs, res)
		printRecord(msgs, deps.Repo, cfg.PlayerName, logger)
		return 0
	case errors.Is(runErr, context.Canceled):
		fmt.Println(msgs.RenderOr("client.interrupted", nil, "[client] interrupted"))
		return 130
	case errors.Is(runErr, session.ErrRegisterRejected):
		fmt.Println(msgs.RenderOr("client.register_failed", nil, "[client] register failed"))
		return 1
	case errors.Is(runErr, session.ErrDisconnected):
		fmt.Println(msgs.RenderOr("client.disconnected", nil, "[client] server disconnected"))
		logger.Error("client_stopped", zap.Error(runErr))
		return 1
	default:
		logger.Error("client_stopped", zap.Error(runErr))
		return 1
	}
}

func printScores(msgs *msgcat.Catalog, res *domain.GameResult) {
	names := make([]string, 0, len(res.Scores))
	for name := range res.Scores {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		score := res.Scores[name]
		fmt.Println(msgs.RenderOr("client.score_line", map[string]any{"Name": name, "Score": score},
			fmt.Sprintf("%s: %d points", name, score)))
	}
	fmt.Println(msgs.RenderOr("client.outcome", res, string(res.Outcome)))
}

func printRecord(msgs *msgcat.Catalog, repo store.Repository, player string, logger *zap.Logger) {
	if repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	rec, err := repo.Record(ctx, player)
	if err != nil {
		logger.Warn("record_load_failed", zap.Error(err))
		return
	}
	fmt.Println(msgs.RenderOr("client.record", rec,
		fmt.Sprintf("[client] record: %dW %dL %dD in %d games", rec.Wins, rec.Losses, rec.Draws, rec.Games)))
}
