// Package redis publishes finalized classification results onto a Redis
// stream so downstream consumers (alerting, dashboards) can react without
// polling Postgres.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/whalewatch/whaletx/internal/domain/model"
)

const (
	// DefaultStream is where classification results land.
	DefaultStream = "whaletx:classifications"

	// maxStreamLen caps the stream with approximate trimming; consumers
	// that lag further than this lose entries.
	maxStreamLen = 100_000
)

type Publisher struct {
	client *redis.Client
	stream string
}

func NewPublisher(url, stream string) (*Publisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if stream == "" {
		stream = DefaultStream
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Publisher{client: client, stream: stream}, nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}

// Publish appends one result to the stream. The payload carries the full
// wire-stable result JSON plus flat fields for consumers that filter
// without parsing the body.
func (p *Publisher) Publish(ctx context.Context, result *model.ClassificationResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result %s: %w", result.TxHash, err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]any{
			"tx_hash":        result.TxHash,
			"classification": string(result.Classification),
			"confidence":     result.Confidence,
			"manual_review":  result.ManualReviewRequired,
			"payload":        body,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish result %s: %w", result.TxHash, err)
	}
	return nil
}

func (p *Publisher) Client() *redis.Client {
	return p.client
}
