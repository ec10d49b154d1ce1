package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/listing-toolkit/internal/models"
	"github.com/redis/go-redis/v9"
)

const EventTypeRunCompleted = "listing.run_completed"

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// Publisher announces finished job runs on a Redis stream.
type Publisher struct {
	redis  RedisClient
	stream string
	source string
	logger *slog.Logger
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	return &Publisher{
		redis:  client,
		stream: stream,
		source: "listing-toolkit",
		logger: logger.With("component", "event_publisher"),
	}
}

func (p *Publisher) PublishRun(ctx context.Context, run *models.RunSummary) error {
	streamData := map[string]interface{}{
		"id":        run.ID.String(),
		"type":      EventTypeRunCompleted,
		"timestamp": run.FinishedAt.Format(time.RFC3339),
		"payload":   run,
		"metadata": map[string]interface{}{
			"source":      p.source,
			"duration_ms": run.Duration().Milliseconds(),
		},
	}

	dataJSON, err := json.Marshal(streamData)
	if err != nil {
		return fmt.Errorf("failed to marshal stream data: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":       string(dataJSON),
			"type":       EventTypeRunCompleted,
			"job":        run.Job,
			"run_id":     run.ID.String(),
			"timestamp":  fmt.Sprintf("%d", run.FinishedAt.UnixNano()),
			"event_type": EventTypeRunCompleted,
		},
	}

	id, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Info("run published", "run_id", run.ID, "job", run.Job, "stream", p.stream, "message_id", id)
	return nil
}
