package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cueclub/internal/push"
)

type fakeStore struct {
	chatIDs []int64
	tokens  []string

	mu     sync.Mutex
	logged []int // sent, failed
}

func (f *fakeStore) ListUserTelegramIDs(context.Context) ([]int64, error) { return f.chatIDs, nil }
func (f *fakeStore) ListPushTokens(context.Context) ([]string, error)     { return f.tokens, nil }

func (f *fakeStore) LogBroadcast(_ context.Context, _ int64, _ string, sent, failed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logged = []int{sent, failed}
	return nil
}

type fakeMessenger struct {
	mu     sync.Mutex
	sent   []int64
	failAt map[int64]bool
}

func (f *fakeMessenger) SendText(chatID int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAt[chatID] {
		return errors.New("blocked by user")
	}
	f.sent = append(f.sent, chatID)
	return nil
}

type fakePusher struct {
	mu       sync.Mutex
	messages []push.Message
}

func (f *fakePusher) Send(_ context.Context, messages []push.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, messages...)
	return nil
}

func TestSendFansOutAndLogs(t *testing.T) {
	store := &fakeStore{
		chatIDs: []int64{1, 2, 3, 4},
		tokens:  []string{"ExponentPushToken[a]", "ExponentPushToken[b]"},
	}
	messenger := &fakeMessenger{failAt: map[int64]bool{3: true}}
	pusher := &fakePusher{}

	svc := NewService(store, messenger, pusher, zerolog.Nop())
	result, err := svc.Send(context.Background(), 99, "Closed on Sunday")
	require.NoError(t, err)

	assert.Equal(t, 3, result.Sent)
	assert.Equal(t, 1, result.Failed)
	assert.ElementsMatch(t, []int{3, 1}, store.logged)

	// Every push token got the announcement in one batched call.
	require.Len(t, pusher.messages, 2)
	assert.Equal(t, "Closed on Sunday", pusher.messages[0].Body)
}

func TestSendWithoutPusher(t *testing.T) {
	store := &fakeStore{chatIDs: []int64{1}}
	messenger := &fakeMessenger{}

	svc := NewService(store, messenger, nil, zerolog.Nop())
	result, err := svc.Send(context.Background(), 99, "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
}

func TestSendNoUsers(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, &fakeMessenger{}, nil, zerolog.Nop())

	result, err := svc.Send(context.Background(), 99, "hello")
	require.NoError(t, err)
	assert.Zero(t, result.Sent)
	assert.Zero(t, result.Failed)
}
