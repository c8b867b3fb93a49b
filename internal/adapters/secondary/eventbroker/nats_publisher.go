package eventbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
)

const (
	StreamName = "INTERACTIONS"

	SubjectPostCreated    = "post.created"
	SubjectLikeAdded      = "interaction.like.added"
	SubjectLikeRemoved    = "interaction.like.removed"
	SubjectCommentAdded   = "interaction.comment.added"
	SubjectCommentRemoved = "interaction.comment.removed"
)

// NatsPublisher publie sur JetStream : le serveur acquitte la persistance.
// Les abonnés "core" NATS reçoivent aussi les messages du stream.
type NatsPublisher struct {
	js jetstream.JetStream
}

// NewNatsPublisher s'assure que le Stream existe (Idempotent)
func NewNatsPublisher(ctx context.Context, nc *nats.Conn) (*NatsPublisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{"post.>", "interaction.>"},
		Storage:  jetstream.FileStorage,
		Replicas: 1, // Mettre 3 en cluster
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}

	return &NatsPublisher{js: js}, nil
}

// --- Payloads (contrat implicite avec les consommateurs) ---

type PostCreatedEvent struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	ImageURL  string    `json:"image_url"`
	Caption   *string   `json:"caption,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type LikeEvent struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type CommentEvent struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *NatsPublisher) PublishPostCreated(ctx context.Context, post *domain.Post) error {
	return p.publish(ctx, SubjectPostCreated, PostCreatedEvent{
		ID:        post.ID,
		AuthorID:  post.AuthorID,
		ImageURL:  post.ImageURL,
		Caption:   post.Caption,
		CreatedAt: post.CreatedAt,
	})
}

func (p *NatsPublisher) PublishLikeAdded(ctx context.Context, like *domain.Like) error {
	return p.publish(ctx, SubjectLikeAdded, likeEvent(like))
}

func (p *NatsPublisher) PublishLikeRemoved(ctx context.Context, like *domain.Like) error {
	return p.publish(ctx, SubjectLikeRemoved, likeEvent(like))
}

func (p *NatsPublisher) PublishCommentAdded(ctx context.Context, c *domain.Comment) error {
	return p.publish(ctx, SubjectCommentAdded, CommentEvent{
		ID:        c.ID,
		PostID:    c.PostID,
		AuthorID:  c.AuthorID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	})
}

func (p *NatsPublisher) PublishCommentRemoved(ctx context.Context, c *domain.Comment) error {
	return p.publish(ctx, SubjectCommentRemoved, CommentEvent{
		ID:        c.ID,
		PostID:    c.PostID,
		AuthorID:  c.AuthorID,
		CreatedAt: c.CreatedAt,
	})
}

func likeEvent(l *domain.Like) LikeEvent {
	return LikeEvent{ID: l.ID, PostID: l.PostID, UserID: l.UserID, CreatedAt: l.CreatedAt}
}

func (p *NatsPublisher) publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling error: %w", err)
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  nats.Header{},
	}
	// Injection du trace context dans les headers NATS
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	ack, err := p.js.PublishMsg(ctx, msg)
	if err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	slog.DebugContext(ctx, "📢 event published", "subject", subject, "seq", ack.Sequence)
	return nil
}

// NopPublisher est utilisé quand NATS n'est pas configuré (dev, tests).
type NopPublisher struct{}

func (NopPublisher) PublishPostCreated(context.Context, *domain.Post) error       { return nil }
func (NopPublisher) PublishLikeAdded(context.Context, *domain.Like) error         { return nil }
func (NopPublisher) PublishLikeRemoved(context.Context, *domain.Like) error       { return nil }
func (NopPublisher) PublishCommentAdded(context.Context, *domain.Comment) error   { return nil }
func (NopPublisher) PublishCommentRemoved(context.Context, *domain.Comment) error { return nil }
