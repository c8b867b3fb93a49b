package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/ports"
)

const (
	// FanoutTimeout borne la distribution d'un post à tous les followers.
	FanoutTimeout = 30 * time.Second
	// MaxConcurrentFanouts : au-delà, la réception NATS attend qu'un fan-out se libère.
	MaxConcurrentFanouts = 16
)

var tracer = otel.Tracer("interaction-service")

type EventHandler struct {
	service ports.TimelineService
	fanouts errgroup.Group
}

type HandlerOption func(*EventHandler)

// WithMaxConcurrent change la limite de fan-outs simultanés.
func WithMaxConcurrent(n int) HandlerOption {
	return func(h *EventHandler) { h.fanouts.SetLimit(n) }
}

func NewEventHandler(service ports.TimelineService, opts ...HandlerOption) *EventHandler {
	h := &EventHandler{service: service}
	h.fanouts.SetLimit(MaxConcurrentFanouts)
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type postCreatedEvent struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *EventHandler) HandlePostCreated(msg *nats.Msg) {
	// Le contexte de trace du publisher voyage dans les headers NATS
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), propagation.HeaderCarrier(msg.Header))

	ctx, span := tracer.Start(ctx, "process_post_created", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	var event postCreatedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		span.RecordError(err)
		slog.Error("❌ Invalid event format", "error", err)
		return
	}
	if event.ID == "" || event.AuthorID == "" {
		slog.Error("❌ Incomplete post.created event", "post_id", event.ID)
		return
	}
	span.SetAttributes(attribute.String("post.id", event.ID))

	slog.Info("📨 Received post.created", "post_id", event.ID, "author_id", event.AuthorID)

	entry := &domain.TimelineEntry{
		PostID:    event.ID,
		AuthorID:  event.AuthorID,
		CreatedAt: event.CreatedAt.UTC(),
	}

	// Le fan-out tourne en arrière-plan, dans la limite de MaxConcurrentFanouts.
	// Le span de réception se ferme tout de suite ; le fan-out a son propre span.
	h.fanouts.Go(func() error {
		fctx, cancel := context.WithTimeout(ctx, FanoutTimeout)
		defer cancel()
		fctx, fspan := tracer.Start(fctx, "distribute_post", trace.WithAttributes(attribute.String("post.id", entry.PostID)))
		defer fspan.End()

		if err := h.service.DistributePost(fctx, entry); err != nil {
			fspan.RecordError(err)
			fspan.SetStatus(codes.Error, err.Error())
			slog.Error("❌ Fan-out failed", "post_id", entry.PostID, "error", err)
		} else {
			slog.Debug("✅ Fan-out success", "post_id", entry.PostID)
		}
		// Un échec ne doit pas interrompre les autres fan-outs
		return nil
	})
}

// Wait attend la fin des fan-outs en cours (shutdown).
func (h *EventHandler) Wait() {
	_ = h.fanouts.Wait()
}
