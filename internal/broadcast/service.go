// Package broadcast fans an admin announcement out to every club member
// over Telegram and Expo push. Sends are throttled and jittered so the bot
// stays under the Telegram flood limits.
package broadcast

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"cueclub/internal/metrics"
	"cueclub/internal/push"
)

const (
	maxConcurrent = 5
	jitterMinMS   = 50
	jitterMaxMS   = 150
)

// Messenger sends a plain text message to a Telegram chat.
type Messenger interface {
	SendText(chatID int64, text string) error
}

// Pusher delivers push messages to the mobile app.
type Pusher interface {
	Send(ctx context.Context, messages []push.Message) error
}

// Store lists broadcast targets and records outcomes.
type Store interface {
	ListUserTelegramIDs(ctx context.Context) ([]int64, error)
	ListPushTokens(ctx context.Context) ([]string, error)
	LogBroadcast(ctx context.Context, adminID int64, body string, sent, failed int) error
}

// Result summarises one broadcast fan-out.
type Result struct {
	Sent   int
	Failed int
}

// Service delivers admin broadcasts.
type Service struct {
	store     Store
	messenger Messenger
	pusher    Pusher // nil when push is not configured
	limiter   *rate.Limiter
	rng       *rand.Rand
	rngMu     sync.Mutex
	logger    zerolog.Logger
}

// NewService creates a broadcast service. pusher may be nil.
func NewService(store Store, messenger Messenger, pusher Pusher, logger zerolog.Logger) *Service {
	return &Service{
		store:     store,
		messenger: messenger,
		pusher:    pusher,
		limiter:   rate.NewLimiter(rate.Limit(20), 30),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:    logger.With().Str("component", "broadcast").Logger(),
	}
}

// Send fans the message out to all users. Telegram sends run concurrently
// under a semaphore; the push leg goes out as one batched call. The outcome
// is logged to the broadcasts table.
func (s *Service) Send(ctx context.Context, adminID int64, body string) (Result, error) {
	chatIDs, err := s.store.ListUserTelegramIDs(ctx)
	if err != nil {
		return Result{}, err
	}

	var (
		mu     sync.Mutex
		result Result
		wg     sync.WaitGroup
		sem    = make(chan struct{}, maxConcurrent)
	)

	for _, chatID := range chatIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(chatID int64) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.wait(ctx); err != nil {
				mu.Lock()
				result.Failed++
				mu.Unlock()
				return
			}

			err := s.messenger.SendText(chatID, body)
			mu.Lock()
			if err != nil {
				result.Failed++
				metrics.IncBroadcast("failed")
			} else {
				result.Sent++
				metrics.IncBroadcast("sent")
			}
			mu.Unlock()
			if err != nil {
				s.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("broadcast send failed")
			}
		}(chatID)
	}
	wg.Wait()

	s.sendPush(ctx, body)

	if err := s.store.LogBroadcast(ctx, adminID, body, result.Sent, result.Failed); err != nil {
		s.logger.Error().Err(err).Msg("log broadcast")
	}
	s.logger.Info().
		Int64("admin_id", adminID).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Msg("broadcast completed")
	return result, nil
}

func (s *Service) sendPush(ctx context.Context, body string) {
	if s.pusher == nil {
		return
	}
	tokens, err := s.store.ListPushTokens(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("list push tokens")
		return
	}
	if len(tokens) == 0 {
		return
	}

	messages := make([]push.Message, len(tokens))
	for i, token := range tokens {
		messages[i] = push.Message{To: token, Title: "Club announcement", Body: body}
	}
	if err := s.pusher.Send(ctx, messages); err != nil {
		s.logger.Error().Err(err).Msg("push broadcast failed")
	}
}

// wait applies jitter and then the rate limit.
func (s *Service) wait(ctx context.Context) error {
	s.rngMu.Lock()
	jitter := time.Duration(jitterMinMS+s.rng.Intn(jitterMaxMS-jitterMinMS)) * time.Millisecond
	s.rngMu.Unlock()

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.limiter.Wait(ctx)
}
