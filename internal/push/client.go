// Package push delivers notifications to the club's mobile app through the
// Expo push gateway. Messages go out in batches, throttled by a rate
// limiter; ticket IDs are cached in Redis so a later sweep can collect
// delivery receipts and spot dead device tokens.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"cueclub/internal/metrics"
)

const (
	// DefaultEndpoint is the Expo push send URL.
	DefaultEndpoint = "https://exp.host/--/api/v2/push/send"

	// ReceiptsEndpoint is the Expo push receipts URL.
	ReceiptsEndpoint = "https://exp.host/--/api/v2/push/getReceipts"

	// maxBatch is the gateway's per-request message cap.
	maxBatch = 100

	ticketKeyPrefix = "push:ticket:"
	ticketTTL       = 24 * time.Hour
)

// Message is one push notification.
type Message struct {
	To    string         `json:"to"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
	Sound string         `json:"sound,omitempty"`
}

// Ticket is the gateway's per-message acknowledgement.
type Ticket struct {
	Status  string `json:"status"` // "ok" or "error"
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details,omitempty"`
}

// Receipt reports the final delivery outcome for a ticket.
type Receipt struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details,omitempty"`
}

// Client talks to the Expo push gateway.
type Client struct {
	endpoint string
	receipts string
	http     *http.Client
	limiter  *rate.Limiter
	cache    *redis.Client // nil when Redis is not configured
	logger   zerolog.Logger
}

// NewClient creates a push client. cache may be nil; receipt collection is
// then skipped.
func NewClient(endpoint string, cache *redis.Client, logger zerolog.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		receipts: ReceiptsEndpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(5), 10),
		cache:    cache,
		logger:   logger.With().Str("component", "push").Logger(),
	}
}

// Send delivers messages in gateway-sized batches. A failed batch is logged
// and counted but does not stop the remaining batches.
func (c *Client) Send(ctx context.Context, messages []Message) error {
	for start := 0; start < len(messages); start += maxBatch {
		end := start + maxBatch
		if end > len(messages) {
			end = len(messages)
		}
		if err := c.sendBatch(ctx, messages[start:end]); err != nil {
			metrics.IncPushRequest("error")
			c.logger.Error().Err(err).Int("batch_size", end-start).Msg("push batch failed")
			continue
		}
		metrics.IncPushRequest("ok")
	}
	return nil
}

func (c *Client) sendBatch(ctx context.Context, batch []Message) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal push batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("push gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push gateway status %d", resp.StatusCode)
	}

	var out struct {
		Data []Ticket `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode push tickets: %w", err)
	}

	for i, ticket := range out.Data {
		if ticket.Status != "ok" {
			c.logger.Warn().
				Str("error", ticket.Details.Error).
				Str("to", batch[i].To).
				Msg("push ticket rejected")
			continue
		}
		c.rememberTicket(ctx, ticket.ID, batch[i].To)
	}
	return nil
}

// rememberTicket stores a ticket->token mapping so the receipt sweep can
// attribute delivery failures to a device token.
func (c *Client) rememberTicket(ctx context.Context, ticketID, token string) {
	if c.cache == nil || ticketID == "" {
		return
	}
	if err := c.cache.Set(ctx, ticketKeyPrefix+ticketID, token, ticketTTL).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("cache push ticket")
	}
}

// SweepReceipts fetches receipts for cached tickets and returns the device
// tokens the gateway reported as unregistered. Consumed tickets are removed
// from the cache.
func (c *Client) SweepReceipts(ctx context.Context) ([]string, error) {
	if c.cache == nil {
		return nil, nil
	}

	keys, err := c.cache.Keys(ctx, ticketKeyPrefix+"*").Result()
	if err != nil || len(keys) == 0 {
		return nil, err
	}

	ids := make([]string, 0, len(keys))
	tokenByID := make(map[string]string, len(keys))
	for _, key := range keys {
		token, err := c.cache.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		id := key[len(ticketKeyPrefix):]
		ids = append(ids, id)
		tokenByID[id] = token
	}

	receipts, err := c.fetchReceipts(ctx, ids)
	if err != nil {
		return nil, err
	}

	var dead []string
	for id, receipt := range receipts {
		if receipt.Status == "error" && receipt.Details.Error == "DeviceNotRegistered" {
			dead = append(dead, tokenByID[id])
		}
		c.cache.Del(ctx, ticketKeyPrefix+id)
	}
	return dead, nil
}

func (c *Client) fetchReceipts(ctx context.Context, ids []string) (map[string]Receipt, error) {
	body, err := json.Marshal(map[string][]string{"ids": ids})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.receipts, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("receipts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("receipts status %d", resp.StatusCode)
	}

	var out struct {
		Data map[string]Receipt `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode receipts: %w", err)
	}
	return out.Data, nil
}
