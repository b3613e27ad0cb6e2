package backend

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Cyclone1070/nlshell/internal/config"
)

// Router orchestrates model calls: it applies a hard per-call timeout,
// retries once against a fallback backend on failure, detects stalls on
// streamed calls, and routes messages to models by keyword.
//
// Cancellation is best effort: aborting the context stops waiting for the
// backend, but in-flight network work may finish in the background.
type Router struct {
	primary      Backend
	fallback     Backend
	hardTimeout  time.Duration
	stallTimeout time.Duration
	routing      config.RoutingConfig
	logger       *slog.Logger
}

// NewRouter creates a Router. fallback may be nil, in which case failures
// surface directly.
func NewRouter(primary, fallback Backend, hardTimeout, stallTimeout time.Duration, routing config.RoutingConfig, logger *slog.Logger) *Router {
	if primary == nil {
		panic("primary backend is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		primary:      primary,
		fallback:     fallback,
		hardTimeout:  hardTimeout,
		stallTimeout: stallTimeout,
		routing:      routing,
		logger:       logger,
	}
}

// PickModel returns the model the routing table selects for text, or ""
// when no rule matches. Pure function of text and static config.
func (r *Router) PickModel(text string) string {
	if !r.routing.Enabled {
		return ""
	}
	lower := strings.ToLower(text)
	for _, route := range r.routing.Routes {
		for _, keyword := range route.Keywords {
			if strings.Contains(lower, strings.ToLower(keyword)) {
				return route.Model
			}
		}
	}
	return ""
}

// Send delivers prompt to the primary backend under the hard timeout. On
// timeout or error it retries exactly once against the fallback backend
// (if configured); a fallback failure is final.
func (r *Router) Send(ctx context.Context, prompt string) (string, error) {
	if model := r.PickModel(prompt); model != "" {
		r.primary.SetModel(model)
	}

	text, err := r.sendOnce(ctx, r.primary, prompt)
	if err == nil {
		return text, nil
	}
	if r.fallback == nil || errors.Is(err, context.Canceled) {
		return "", err
	}

	r.logger.Warn("primary backend failed, retrying on fallback",
		"backend", r.primary.Name(), "fallback", r.fallback.Name(), "error", err)

	text, fbErr := r.sendOnce(ctx, r.fallback, prompt)
	if fbErr != nil {
		return "", errors.Join(err, fbErr)
	}
	return text, nil
}

// SendStream delivers prompt to the primary backend and returns a chunk
// channel. Beyond the hard timeout it enforces a stall window on
// inter-chunk latency: a silent stream is aborted with ErrStalled so the
// caller can retry non-streamed. Stream failures do not fall back; the
// error is surfaced for the caller to decide.
func (r *Router) SendStream(ctx context.Context, prompt string) (<-chan Chunk, error) {
	if model := r.PickModel(prompt); model != "" {
		r.primary.SetModel(model)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.hardTimeout)

	in, err := r.primary.ChatStream(callCtx, prompt)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer cancel()

		stall := time.NewTimer(r.stallTimeout)
		defer stall.Stop()

		for {
			select {
			case chunk, ok := <-in:
				if !ok {
					// Stream closed without a terminal chunk; surface the
					// deadline if that is what ended it.
					if callCtx.Err() == context.DeadlineExceeded {
						out <- Chunk{Err: ErrTimeout}
					} else if callCtx.Err() != nil {
						out <- Chunk{Err: callCtx.Err()}
					}
					return
				}
				if chunk.Err != nil && callCtx.Err() == context.DeadlineExceeded {
					chunk.Err = ErrTimeout
				}
				out <- chunk
				if chunk.Err != nil || chunk.Done {
					return
				}
				if !stall.Stop() {
					<-stall.C
				}
				stall.Reset(r.stallTimeout)

			case <-stall.C:
				r.logger.Warn("backend stream stalled", "backend", r.primary.Name(), "window", r.stallTimeout)
				cancel()
				drain(in)
				out <- Chunk{Err: ErrStalled}
				return

			case <-callCtx.Done():
				drain(in)
				if callCtx.Err() == context.DeadlineExceeded {
					out <- Chunk{Err: ErrTimeout}
				} else {
					out <- Chunk{Err: callCtx.Err()}
				}
				return
			}
		}
	}()
	return out, nil
}

// CheckConnection probes the primary backend.
func (r *Router) CheckConnection(ctx context.Context) bool {
	return r.primary.CheckConnection(ctx)
}

// SetSystemPrompt propagates the system prompt to both backends so a
// fallback retry sees the same instructions.
func (r *Router) SetSystemPrompt(prompt string) {
	r.primary.SetSystemPrompt(prompt)
	if r.fallback != nil {
		r.fallback.SetSystemPrompt(prompt)
	}
}

// Model returns the primary backend's active model.
func (r *Router) Model() string {
	return r.primary.Model()
}

// sendOnce runs one backend call under the hard timeout.
func (r *Router) sendOnce(ctx context.Context, b Backend, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.hardTimeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := b.Chat(callCtx, prompt)
		done <- result{text, err}
	}()

	select {
	case res := <-done:
		if res.err != nil && callCtx.Err() == context.DeadlineExceeded {
			return "", ErrTimeout
		}
		return res.text, res.err
	case <-callCtx.Done():
		if callCtx.Err() == context.DeadlineExceeded {
			return "", ErrTimeout
		}
		return "", callCtx.Err()
	}
}

func drain(in <-chan Chunk) {
	go func() {
		for range in {
		}
	}()
}
