package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
)

const publishTimeout = 5 * time.Second

// FindingEvent is the JetStream message published per finding.
type FindingEvent struct {
	BuildID   string    `json:"build_id,omitempty"`
	File      string    `json:"file"`
	Category  Category  `json:"category"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

// streamPublisher is the part of jetstream.JetStream the publisher uses.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher sends audit findings to a JetStream subject.
type Publisher struct {
	conn    *nats.Conn
	js      streamPublisher
	subject string
	now     func() time.Time
	logger  *slog.Logger
}

// NewPublisher connects to NATS and makes sure a stream captures the
// configured subject.
func NewPublisher(ctx context.Context, cfg config.NATSConfig, logger *slog.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, ferrors.ConfigError("audit publishing is disabled").Build()
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(cfg.URL, nats.Timeout(cfg.ConnectTimeout), nats.Name("blogbuilder-audit"))
	if err != nil {
		return nil, ferrors.NetworkError("failed to connect to NATS").
			WithCause(err).
			WithContext("url", cfg.URL).
			Build()
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, ferrors.NetworkError("failed to create JetStream context").WithCause(err).Build()
	}

	if cfg.Stream != "" {
		streamCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		_, err = js.CreateOrUpdateStream(streamCtx, jetstream.StreamConfig{
			Name:        cfg.Stream,
			Description: "blogbuilder audit findings",
			Subjects:    []string{cfg.Subject},
		})
		if err != nil {
			conn.Close()
			return nil, ferrors.NetworkError("failed to prepare audit stream").
				WithCause(err).
				WithContext("stream", cfg.Stream).
				Build()
		}
	}

	logger.Info("NATS publisher initialized for audit findings",
		logfields.URL(cfg.URL),
		slog.String("subject", cfg.Subject),
		slog.String("stream", cfg.Stream))

	return &Publisher{conn: conn, js: js, subject: cfg.Subject, now: time.Now, logger: logger}, nil
}

// Publish sends one event per finding and returns how many were
// acknowledged. Individual failures are logged and do not stop the rest.
func (p *Publisher) Publish(ctx context.Context, buildID string, r *Report) int {
	sent := 0
	for _, f := range r.Findings {
		if ctx.Err() != nil {
			break
		}
		if err := p.publishOne(ctx, buildID, f); err != nil {
			p.logger.Warn("Failed to publish audit finding",
				logfields.File(f.File),
				slog.String("category", string(f.Category)),
				logfields.Error(err))
			continue
		}
		sent++
	}
	p.logger.Debug("Published audit findings", logfields.BuildID(buildID), logfields.Count(sent))
	return sent
}

func (p *Publisher) publishOne(ctx context.Context, buildID string, f Finding) error {
	data, err := json.Marshal(FindingEvent{
		BuildID:   buildID,
		File:      f.File,
		Category:  f.Category,
		Detail:    f.Detail,
		Timestamp: p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if _, err := p.js.Publish(ctx, p.subject, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close closes the NATS connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
