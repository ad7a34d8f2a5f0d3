package store

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const ttlGame = 24 * time.Hour

const (
	StatusPlaying  = "playing"
	StatusFinished = "finished"
	StatusAborted  = "aborted"
)

var (
	ErrRedisURLRequired = errors.New("REDIS_URL required for live store")
	ErrGameNotFound     = errors.New("game not found")
	ErrGameClosed       = errors.New("game already closed")
)

// Snapshot is the latest known state of a game in progress.
type Snapshot struct {
	GameID    string    `json:"game_id"`
	Player    string    `json:"player"`
	Side      string    `json:"side"`
	Board     []string  `json:"board"`
	Turns     int       `json:"turns"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LiveStore keeps the running game in Redis so another process can watch it.
type LiveStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewLiveStore(redisURL string) (*LiveStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, ErrRedisURLRequired
	}
	opts, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &LiveStore{rdb: rdb, ttl: ttlGame}, nil
}

func (s *LiveStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func gameKey(id string) string  { return "ataxx:game:" + strings.TrimSpace(id) }
func movesKey(id string) string { return gameKey(id) + ":moves" }

func (s *LiveStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	if snap == nil || strings.TrimSpace(snap.GameID) == "" {
		return fmt.Errorf("snapshot without game id")
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, gameKey(snap.GameID), raw, s.ttl)
	// 수 목록 키 TTL도 같이 갱신
	pipe.Expire(ctx, movesKey(snap.GameID), s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// LoadSnapshot returns nil, nil when the game is unknown or expired.
func (s *LiveStore) LoadSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	raw, err := s.rdb.Get(ctx, gameKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// AppendMove records a sent move ("r1 c1 r2 c2") and returns the new list length.
func (s *LiveStore) AppendMove(ctx context.Context, id, move string) (int64, error) {
	pipe := s.rdb.TxPipeline()
	push := pipe.RPush(ctx, movesKey(id), move)
	pipe.Expire(ctx, movesKey(id), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return push.Val(), nil
}

func (s *LiveStore) Moves(ctx context.Context, id string) ([]string, error) {
	return s.rdb.LRange(ctx, movesKey(id), 0, -1).Result()
}

// Finish moves a playing game to status under WATCH so a concurrent writer
// cannot reopen it.
func (s *LiveStore) Finish(ctx context.Context, id, status string, board []string) (*Snapshot, error) {
	key := gameKey(id)
	var out *Snapshot
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrGameNotFound
		}
		if err != nil {
			return err
		}
		var cur Snapshot
		if err := json.Unmarshal(raw, &cur); err != nil {
			return err
		}
		if cur.Status != StatusPlaying {
			return ErrGameClosed
		}
		cur.Status = status
		if len(board) > 0 {
			cur.Board = board
		}
		cur.UpdatedAt = time.Now()
		newRaw, err := json.Marshal(&cur)
		if err != nil {
			return err
		}
		pipe := tx.TxPipeline()
		pipe.Set(ctx, key, newRaw, s.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		out = &cur
		return nil
	}, key)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ParseRedisURL accepts redis:// and rediss:// URLs with an optional /db path.
func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db %q", p)
		}
		db = n
	}
	host, port := u.Hostname(), u.Port()
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "6379"
	}
	pass, _ := u.User.Password()
	opts := &redis.Options{Addr: net.JoinHostPort(host, port), Password: pass, DB: db}
	if u.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{ServerName: u.Hostname(), MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}
