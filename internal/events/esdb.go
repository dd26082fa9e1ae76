package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/EventStore/EventStore-Client-Go/v4/esdb"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meracare/frontdesk/internal/shared/config"
	"github.com/meracare/frontdesk/internal/shared/metrics"
)

const maxReconnectBackoff = 30 * time.Second

// Channel is the single shared notification subscription per process,
// backed by an EventStoreDB catch-up subscription. It reconnects with
// exponential backoff and resumes silently; there is no replay buffer, so
// consumers treat every notification as "something changed, refetch".
type Channel struct {
	dispatcher

	client *esdb.Client
	stream string
	log    zerolog.Logger
}

// NewChannel connects the EventStoreDB client. The subscription itself is
// established by Run.
func NewChannel(cfg config.StreamConfig, log zerolog.Logger) (*Channel, error) {
	settings, err := esdb.ParseConnectionString(connectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse stream connection string: %w", err)
	}

	client, err := esdb.NewClient(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream client: %w", err)
	}

	return &Channel{
		dispatcher: newDispatcher(),
		client:     client,
		stream:     cfg.Stream,
		log:        log,
	}, nil
}

func connectionString(cfg config.StreamConfig) string {
	var auth string
	if cfg.Username != "" && cfg.Password != "" {
		auth = fmt.Sprintf("%s:%s@", cfg.Username, cfg.Password)
	}

	params := ""
	if cfg.Insecure {
		params = "?tls=false&tlsVerifyCert=false&keepAliveInterval=10000&keepAliveTimeout=10000"
	}

	return fmt.Sprintf("esdb://%s%s:%d%s", auth, cfg.Host, cfg.Port, params)
}

// Run establishes the subscription and consumes it until ctx is cancelled,
// reconnecting on every drop. Subscriptions always start from the stream
// end: missed notifications are covered by the scheduler's polling, not by
// replay.
func (c *Channel) Run(ctx context.Context) {
	backoff := time.Duration(0)

	for {
		if ctx.Err() != nil {
			return
		}

		sub, err := c.subscribe(ctx)
		if err != nil {
			backoff = nextBackoff(backoff, maxReconnectBackoff)
			c.setState(StateDegraded)
			metrics.SetChannelDegraded(true)
			metrics.ChannelReconnect()
			c.log.Warn().Err(err).Dur("retry_in", backoff).Msg("event channel connect failed, degrading to polling")

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}

		backoff = 0
		c.setState(StateConnected)
		metrics.SetChannelDegraded(false)
		c.log.Info().Msg("event channel connected")

		c.consume(ctx, sub)
		sub.Close()

		if ctx.Err() != nil {
			return
		}
		c.setState(StateConnecting)
		metrics.ChannelReconnect()
		c.log.Warn().Msg("event channel dropped, reconnecting")
	}
}

func (c *Channel) subscribe(ctx context.Context) (*esdb.Subscription, error) {
	prefixes := make([]string, 0, len(KnownTypes))
	for _, t := range KnownTypes {
		prefixes = append(prefixes, string(t))
	}

	return c.client.SubscribeToAll(ctx, esdb.SubscribeToAllOptions{
		From: esdb.End{},
		Filter: &esdb.SubscriptionFilter{
			Type:     esdb.EventFilterType,
			Prefixes: prefixes,
		},
	})
}

func (c *Channel) consume(ctx context.Context, sub *esdb.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			subEvent := sub.Recv()
			if subEvent.SubscriptionDropped != nil {
				c.log.Warn().Err(subEvent.SubscriptionDropped.Error).Msg("subscription dropped")
				return
			}
			if subEvent.EventAppeared == nil {
				time.Sleep(10 * time.Millisecond)
				continue
			}

			recorded := subEvent.EventAppeared.Event
			if recorded == nil {
				continue
			}
			if len(recorded.EventType) > 0 && recorded.EventType[0] == '$' {
				continue
			}

			n, err := decodeRecorded(recorded)
			if err != nil {
				c.log.Warn().Err(err).Str("event_type", recorded.EventType).Msg("dropping malformed notification")
				continue
			}

			metrics.NotificationReceived(string(n.Type))
			c.dispatch(ctx, n)
		}
	}
}

// decodeRecorded converts a recorded event into a Notification. The event
// type tag is authoritative; the body only contributes data and message.
func decodeRecorded(recorded *esdb.RecordedEvent) (Notification, error) {
	var n Notification
	if len(recorded.Data) > 0 {
		if err := json.Unmarshal(recorded.Data, &n); err != nil {
			return Notification{}, fmt.Errorf("failed to unmarshal notification: %w", err)
		}
	}
	n.Type = Type(recorded.EventType)
	return n, nil
}

// Publish appends a notification to the stream. Used by the HIS bridge in
// production and the simulator in development.
func (c *Channel) Publish(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	event := esdb.EventData{
		EventID:     uuid.New(),
		EventType:   string(n.Type),
		ContentType: esdb.ContentTypeJson,
		Data:        data,
	}

	_, err = c.client.AppendToStream(ctx, c.stream, esdb.AppendToStreamOptions{
		ExpectedRevision: esdb.Any{},
	}, event)
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Close closes the stream client.
func (c *Channel) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Health verifies the EventStoreDB connection.
func (c *Channel) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := c.client.ReadStream(ctx, "$streams", esdb.ReadStreamOptions{
		From:      esdb.Start{},
		Direction: esdb.Forwards,
	}, 1)
	if err != nil {
		return fmt.Errorf("stream health check failed: %w", err)
	}
	defer stream.Close()

	return nil
}
