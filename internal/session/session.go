package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/park285/ataxx-client/internal/board"
	"github.com/park285/ataxx-client/internal/display"
	"github.com/park285/ataxx-client/internal/domain"
	"github.com/park285/ataxx-client/internal/engine"
	"github.com/park285/ataxx-client/internal/store"
	"github.com/park285/ataxx-client/internal/transport"
	"github.com/park285/ataxx-client/pkg/wire"
	"go.uber.org/zap"
)

type State int

const (
	StateIdle State = iota
	StateRegistering
	StateRegistered
	StatePlaying
	StateFinished
	StateRejected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	case StatePlaying:
		return "playing"
	case StateFinished:
		return "finished"
	case StateRejected:
		return "rejected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "idle"
	}
}

// TurnPhase is where the session is inside one turn:
// Idle -> AwaitingTurnSignal -> Searching -> MoveEmitted -> Idle.
type TurnPhase int

const (
	PhaseIdle TurnPhase = iota
	PhaseAwaitingTurnSignal
	PhaseSearching
	PhaseMoveEmitted
)

func (p TurnPhase) String() string {
	switch p {
	case PhaseAwaitingTurnSignal:
		return "awaiting_turn_signal"
	case PhaseSearching:
		return "searching"
	case PhaseMoveEmitted:
		return "move_emitted"
	default:
		return "idle"
	}
}

// 실패한 턴은 Searching에서 바로 Idle로 돌아간다
var phaseNext = map[TurnPhase][]TurnPhase{
	PhaseIdle:               {PhaseAwaitingTurnSignal},
	PhaseAwaitingTurnSignal: {PhaseSearching, PhaseIdle},
	PhaseSearching:          {PhaseMoveEmitted, PhaseIdle},
	PhaseMoveEmitted:        {PhaseIdle},
}

// searchStats is implemented by sources that can report their last search.
type searchStats interface {
	Last() engine.Result
}

var (
	ErrRegisterRejected = errors.New("server rejected registration")
	ErrDisconnected     = errors.New("server disconnected before game over")
	ErrAlreadyRunning   = errors.New("session already ran")
)

// LiveRecorder mirrors the running game somewhere observable.
type LiveRecorder interface {
	SaveSnapshot(ctx context.Context, snap *store.Snapshot) error
	AppendMove(ctx context.Context, id, move string) (int64, error)
	Finish(ctx context.Context, id, status string, board []string) (*store.Snapshot, error)
}

type ResultReporter interface {
	PostResult(ctx context.Context, r *domain.GameResult) error
}

// Deps are the collaborators of a Session. Only Conn and Source are required.
type Deps struct {
	Conn     transport.Conn
	Source   MoveSource
	Display  display.Sink
	Live     LiveRecorder
	Repo     store.Repository
	Reporter ResultReporter
	Logger   *zap.Logger
	Now      func() time.Time
}

// Session plays one game for one registered username.
type Session struct {
	username string
	deps     Deps
	logger   *zap.Logger

	state     State
	phase     TurnPhase
	side      board.Side
	sideKnown bool
	board     board.Board
	haveBoard bool

	gameID    string
	startedAt time.Time
	moves     []string
	passes    int
	rejected  int

	inbox chan wire.Message
	stop  chan struct{}
	ran   bool
}

func New(username string, deps Deps) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	if deps.Conn == nil || deps.Source == nil {
		return nil, errors.New("session needs a connection and a move source")
	}
	if deps.Display == nil {
		deps.Display = display.Nop()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Session{
		username: username,
		deps:     deps,
		logger:   deps.Logger.With(zap.String("username", username)),
		board:    board.Empty(),
		inbox:    make(chan wire.Message, 64),
		stop:     make(chan struct{}),
	}, nil
}

func (s *Session) State() State { return s.state }

func (s *Session) TurnPhase() TurnPhase { return s.phase }

func (s *Session) advance(to TurnPhase) {
	from := s.phase
	allowed := false
	for _, p := range phaseNext[from] {
		if p == to {
			allowed = true
			break
		}
	}
	if !allowed {
		s.logger.Warn("turn_phase_unexpected", zap.String("from", from.String()), zap.String("to", to.String()))
	}
	s.phase = to
	s.logger.Debug("turn_phase", zap.String("from", from.String()), zap.String("to", to.String()))
}

// Side reports the assigned side; ok is false before game_start.
func (s *Session) Side() (board.Side, bool) { return s.side, s.sideKnown }

// Run connects, registers and plays until game over, rejection, disconnect
// or ctx cancellation. The caller owns closing the connection.
func (s *Session) Run(ctx context.Context) (*domain.GameResult, error) {
	if s.ran {
		return nil, ErrAlreadyRunning
	}
	s.ran = true
	defer close(s.stop)

	conn := s.deps.Conn
	cbID := conn.OnMessage(func(msg *wire.Message) {
		select {
		case s.inbox <- *msg:
		case <-s.stop:
		}
	})
	defer conn.RemoveMessageCallback(cbID)

	if err := conn.Connect(ctx); err != nil {
		s.state = StateDisconnected
		return nil, fmt.Errorf("connect: %w", err)
	}
	s.state = StateRegistering
	if err := conn.Send(ctx, wire.NewRegister(s.username)); err != nil {
		return nil, fmt.Errorf("send register: %w", err)
	}
	s.logger.Info("register_sent")

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg := <-s.inbox:
			if res, done, err := s.handle(ctx, msg); done {
				return res, err
			}
		case <-conn.Done():
			// 끊기기 전에 도착한 메시지부터 처리
			for {
				select {
				case msg := <-s.inbox:
					if res, done, err := s.handle(ctx, msg); done {
						return res, err
					}
					continue
				default:
				}
				break
			}
			s.state = StateDisconnected
			s.logger.Warn("session_disconnected", zap.Error(conn.Err()))
			if err := conn.Err(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrDisconnected, err)
			}
			return nil, ErrDisconnected
		}
	}
}

// handle processes one server message; done reports whether the session ended.
func (s *Session) handle(ctx context.Context, msg wire.Message) (*domain.GameResult, bool, error) {
	if msg.HasBoard() {
		s.updateBoard(ctx, msg.Board)
	}

	switch msg.Type {
	case wire.TypeRegisterAck:
		s.state = StateRegistered
		s.logger.Info("registered")
	case wire.TypeRegisterNack:
		s.state = StateRejected
		s.logger.Warn("register_rejected", zap.String("reason", msg.Reason))
		return nil, true, ErrRegisterRejected
	case wire.TypeGameStart:
		s.startGame(ctx, msg.FirstPlayer)
	case wire.TypeYourTurn, wire.TypeInvalidMove:
		if msg.Type == wire.TypeInvalidMove {
			s.rejected++
			s.logger.Warn("move_rejected", zap.Int("rejected", s.rejected))
		}
		if err := s.playTurn(ctx); err != nil {
			return nil, true, err
		}
	case wire.TypeGameOver:
		return s.finish(ctx, msg.Scores), true, nil
	default:
		s.logger.Debug("message_ignored", zap.String("type", msg.Type))
	}
	return nil, false, nil
}

func (s *Session) updateBoard(ctx context.Context, rows []string) {
	b, err := board.ParseRows(rows)
	if err != nil {
		// 이전 스냅샷 유지
		s.logger.Warn("board_malformed", zap.Error(err))
		return
	}
	s.board, s.haveBoard = b, true
	if err := s.deps.Display.Show(ctx, b, display.ScoreOf(b)); err != nil {
		s.logger.Warn("display_failed", zap.Error(err))
	}
	s.saveSnapshot(ctx)
}

func (s *Session) startGame(ctx context.Context, firstPlayer string) {
	s.side = board.Second
	if firstPlayer == s.username {
		s.side = board.First
	}
	s.sideKnown = true
	s.state = StatePlaying
	s.gameID = uuid.NewString()
	s.startedAt = s.deps.Now()
	s.moves, s.passes, s.rejected = nil, 0, 0
	if s.phase == PhaseIdle {
		s.advance(PhaseAwaitingTurnSignal)
	}
	s.logger.Info("game_start",
		zap.String("game_id", s.gameID),
		zap.String("first_player", firstPlayer),
		zap.String("side", s.side.String()),
	)
	s.saveSnapshot(ctx)
}

func (s *Session) playTurn(ctx context.Context) error {
	if s.phase == PhaseIdle {
		s.advance(PhaseAwaitingTurnSignal)
	}
	s.advance(PhaseSearching)

	cmd := engine.PassCommand
	searched := false
	if !s.sideKnown {
		// 배정된 기호가 없으면 둘 수 있는 수도 없다
		s.logger.Warn("turn_without_game_start")
	} else {
		if !s.haveBoard {
			s.logger.Warn("turn_without_board")
		}
		var err error
		cmd, err = s.deps.Source.NextMove(ctx, s.board, s.side)
		if err != nil {
			s.advance(PhaseIdle)
			return fmt.Errorf("choose move: %w", err)
		}
		searched = true
	}

	req := wire.NewMove(s.username, cmd.SrcRow, cmd.SrcCol, cmd.DstRow, cmd.DstCol)
	if err := s.deps.Conn.Send(ctx, req); err != nil {
		s.advance(PhaseIdle)
		return fmt.Errorf("send move: %w", err)
	}
	s.advance(PhaseMoveEmitted)
	if cmd.IsPass() {
		s.passes++
	}
	s.moves = append(s.moves, cmd.String())

	fields := []zap.Field{zap.String("move", cmd.String()), zap.Bool("pass", cmd.IsPass())}
	if st, ok := s.deps.Source.(searchStats); ok && searched {
		r := st.Last()
		fields = append(fields,
			zap.Int("depth", r.Depth),
			zap.Int("root_moves", r.RootMoves),
			zap.Int64("nodes", r.Nodes),
			zap.Int("score", r.Score),
			zap.Bool("truncated", r.Truncated),
		)
	}
	s.logger.Info("move_sent", fields...)

	if s.deps.Live != nil && s.gameID != "" {
		if _, err := s.deps.Live.AppendMove(ctx, s.gameID, cmd.String()); err != nil {
			s.logger.Warn("live_append_failed", zap.Error(err))
		}
	}

	s.advance(PhaseIdle)
	if s.sideKnown {
		s.advance(PhaseAwaitingTurnSignal)
	}
	return nil
}

func (s *Session) saveSnapshot(ctx context.Context) {
	if s.deps.Live == nil || s.gameID == "" {
		return
	}
	snap := &store.Snapshot{
		GameID:    s.gameID,
		Player:    s.username,
		Side:      s.side.String(),
		Board:     s.board.Rows(),
		Turns:     len(s.moves),
		Status:    store.StatusPlaying,
		StartedAt: s.startedAt,
		UpdatedAt: s.deps.Now(),
	}
	if err := s.deps.Live.SaveSnapshot(ctx, snap); err != nil {
		s.logger.Warn("live_snapshot_failed", zap.Error(err))
	}
}

func (s *Session) finish(ctx context.Context, scores map[string]int) *domain.GameResult {
	s.state = StateFinished
	if s.phase != PhaseIdle {
		s.advance(PhaseIdle)
	}
	now := s.deps.Now()
	if s.gameID == "" {
		s.gameID = uuid.NewString()
		s.startedAt = now
	}
	outcome, opponent, oppScore := domain.DecideOutcome(scores, s.username)
	res := &domain.GameResult{
		ID:            s.gameID,
		Player:        s.username,
		Opponent:      opponent,
		Side:          s.side.String(),
		Scores:        scores,
		PlayerScore:   scores[s.username],
		OpponentScore: oppScore,
		Outcome:       outcome,
		Moves:         append([]string(nil), s.moves...),
		Passes:        s.passes,
		Rejected:      s.rejected,
		StartedAt:     s.startedAt,
		EndedAt:       now,
		Duration:      now.Sub(s.startedAt),
	}
	if s.haveBoard {
		res.FinalBoard = s.board.Rows()
	}

	fields := []zap.Field{zap.String("game_id", res.ID), zap.String("outcome", string(res.Outcome))}
	for name, score := range scores {
		fields = append(fields, zap.Int("score_"+name, score))
	}
	s.logger.Info("game_over", fields...)

	if s.deps.Live != nil {
		if _, err := s.deps.Live.Finish(ctx, res.ID, store.StatusFinished, res.FinalBoard); err != nil && !errors.Is(err, store.ErrGameNotFound) {
			s.logger.Warn("live_finish_failed", zap.Error(err))
		}
	}
	if s.deps.Repo != nil {
		if err := s.deps.Repo.SaveResult(ctx, res); err != nil {
			s.logger.Warn("result_save_failed", zap.Error(err))
		}
	}
	if s.deps.Reporter != nil {
		if err := s.deps.Reporter.PostResult(ctx, res); err != nil {
			s.logger.Warn("result_report_failed", zap.Error(err))
		}
	}
	return res
}
