package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/ataxx-client/internal/domain"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var ErrNoEndpoint = errors.New("report: webhook url is empty")

// Webhook posts finished game results as JSON.
type Webhook struct {
	url     string
	http    *fasthttp.Client
	headers map[string]string
	logger  *zap.Logger

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Webhook)

func WithTimeout(d time.Duration) Option {
	return func(w *Webhook) { w.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(w *Webhook) { w.retryMax = max }
}

func WithHeader(key, value string) Option {
	return func(w *Webhook) { w.headers[key] = value }
}

func WithLogger(l *zap.Logger) Option {
	return func(w *Webhook) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDial replaces the dialer of the underlying client.
func WithDial(dial fasthttp.DialFunc) Option {
	return func(w *Webhook) { w.http.Dial = dial }
}

func NewWebhook(url string, opts ...Option) *Webhook {
	w := &Webhook{
		url:            strings.TrimSpace(url),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 4},
		headers:        map[string]string{},
		logger:         zap.NewNop(),
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// PostResult sends r to the webhook. 5xx and transport errors are retried with backoff.
func (w *Webhook) PostResult(ctx context.Context, r *domain.GameResult) error {
	if w.url == "" {
		return ErrNoEndpoint
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(w.url)
	req.Header.SetContentType("application/json")
	for k, v := range w.headers {
		if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
			req.Header.Set(k, v)
		}
	}
	req.SetBody(payload)

	attempts := max(w.retryMax, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := w.http.DoDeadline(req, resp, w.computeDeadline(ctx))
		if err == nil {
			status := resp.StatusCode()
			if status >= 200 && status < 300 {
				w.logger.Info("result_reported", zap.String("game_id", r.ID), zap.Int("status", status), zap.Int("attempt", attempt))
				return nil
			}
			err = fmt.Errorf("webhook error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
			if !shouldRetryStatus(status) {
				return err
			}
		} else {
			err = fmt.Errorf("request failed: %w", err)
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		w.logger.Warn("result_report_retry", zap.String("game_id", r.ID), zap.Int("attempt", attempt), zap.Error(err))
		if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
			return lastErr
		}
	}
	return lastErr
}

func (w *Webhook) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(w.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
