// Package notify publishes build summaries to NATS JetStream so other services can
// react to a new Route Set.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
	berrors "git.home.luguber.info/inful/blogbuilder/internal/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
	"git.home.luguber.info/inful/blogbuilder/internal/retry"
)

const publishTimeout = 5 * time.Second

// BuildNotification is the message body published after every build.
type BuildNotification struct {
	BuildID          string    `json:"build_id"`
	Outcome          string    `json:"outcome"`
	Routes           []string  `json:"routes"`
	Pages            int       `json:"pages"`
	EnumerationError string    `json:"enumeration_error,omitempty"`
	CompletedAt      time.Time `json:"completed_at"`
}

// Publisher delivers build notifications.
type Publisher interface {
	Publish(ctx context.Context, n BuildNotification) error
	Close() error
}

// NoopPublisher discards notifications.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, BuildNotification) error { return nil }
func (NoopPublisher) Close() error                                     { return nil }

// streamPublisher is the slice of jetstream.JetStream used here.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSPublisher publishes to a JetStream subject.
type NATSPublisher struct {
	conn    *nats.Conn
	js      streamPublisher
	subject string
	policy  retry.Policy
	logger  *slog.Logger
}

// New returns a NATS publisher when events.nats_url is set and a NoopPublisher otherwise.
func New(ctx context.Context, cfg config.EventsConfig, logger *slog.Logger) (Publisher, error) {
	if cfg.NATSURL == "" {
		return NoopPublisher{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(cfg.NATSURL, nats.Name("blogbuilder"), nats.Timeout(publishTimeout))
	if err != nil {
		return nil, berrors.PublishFailed(cfg.Subject, fmt.Errorf("connect %s: %w", cfg.NATSURL, err))
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, berrors.PublishFailed(cfg.Subject, fmt.Errorf("create JetStream context: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName(cfg.Subject),
		Description: "blogbuilder build notifications",
		Subjects:    []string{cfg.Subject},
		MaxMsgs:     1000,
	}); err != nil {
		conn.Close()
		return nil, berrors.PublishFailed(cfg.Subject, fmt.Errorf("ensure stream: %w", err))
	}

	logger.Info("NATS publisher initialized",
		logfields.URL(cfg.NATSURL),
		slog.String("subject", cfg.Subject))

	return &NATSPublisher{
		conn:    conn,
		js:      js,
		subject: cfg.Subject,
		policy:  retry.FromConfig(cfg.Retry),
		logger:  logger,
	}, nil
}

// Publish sends n and waits for the JetStream acknowledgement.
func (p *NATSPublisher) Publish(ctx context.Context, n BuildNotification) error {
	if n.Routes == nil {
		n.Routes = []string{}
	}
	if n.CompletedAt.IsZero() {
		n.CompletedAt = time.Now()
	}

	data, err := json.Marshal(n)
	if err != nil {
		return berrors.PublishFailed(p.subject, fmt.Errorf("marshal notification: %w", err))
	}

	// The message ID lets JetStream drop duplicates when an acked publish is retried.
	var ack *jetstream.PubAck
	err = p.policy.Do(ctx, func(attempt int) error {
		if attempt > 0 {
			p.logger.Debug("Retrying build notification", logfields.BuildID(n.BuildID), slog.Int("attempt", attempt))
		}
		attemptCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		var pubErr error
		ack, pubErr = p.js.Publish(attemptCtx, p.subject, data, jetstream.WithMsgID(n.BuildID))
		return pubErr
	})
	if err != nil {
		return berrors.PublishFailed(p.subject, err).WithContext("build_id", n.BuildID)
	}

	p.logger.Debug("Published build notification",
		logfields.BuildID(n.BuildID),
		slog.String("stream", ack.Stream),
		slog.Uint64("seq", ack.Sequence))
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}

// StreamName derives a valid stream name from a subject ("blogbuilder.builds" -> "BLOGBUILDER_BUILDS").
func StreamName(subject string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ':
			return '_'
		}
		return r
	}, subject)
	return strings.ToUpper(strings.Trim(name, "_"))
}
