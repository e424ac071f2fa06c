// Package invalidation evicts blob cache entries when the CMS reports media changes.
package invalidation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/abduss/mediagate/internal/metrics"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// MediaCollection is the CMS collection whose changes affect the cache.
const MediaCollection = "media"

// Actions reported by Apply.
const (
	ActionDelete    = "delete"
	ActionClear     = "clear"
	ActionIgnored   = "ignored"
	ActionMalformed = "malformed"
)

// ErrMalformedEvent marks payloads that can never be applied.
var ErrMalformedEvent = errors.New("malformed change event")

// Event is a CMS content change notification.
type Event struct {
	Collection string `json:"collection"`
	Operation  string `json:"operation"`
	Filename   string `json:"filename"`
}

type cacheInvalidator interface {
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// Subscriber applies change events from a Pub/Sub subscription to the cache.
type Subscriber struct {
	sub   receiver
	cache cacheInvalidator
	log   *zap.Logger
}

// NewSubscriber builds a Subscriber over sub.
func NewSubscriber(sub receiver, cache cacheInvalidator, log *zap.Logger) *Subscriber {
	if log == nil {
		log = zap.NewNop()
	}
	return &Subscriber{sub: sub, cache: cache, log: log.Named("invalidation")}
}

// Connect opens a Pub/Sub client and returns a handle on subscriptionID. The
// caller closes the client.
func Connect(ctx context.Context, projectID, subscriptionID string, opts ...option.ClientOption) (*pubsub.Client, *pubsub.Subscription, error) {
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return client, client.Subscription(subscriptionID), nil
}

// Run receives until ctx is cancelled. Malformed messages are acked so they are
// not redelivered; cache failures are nacked.
func (s *Subscriber) Run(ctx context.Context) error {
	err := s.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		action, err := s.Apply(ctx, msg.Data)
		switch {
		case errors.Is(err, ErrMalformedEvent):
			s.log.Warn("dropping malformed change event", zap.String("message_id", msg.ID), zap.Error(err))
			msg.Ack()
		case err != nil:
			s.log.Error("cache invalidation failed", zap.String("message_id", msg.ID), zap.Error(err))
			msg.Nack()
		default:
			s.log.Debug("change event applied", zap.String("message_id", msg.ID), zap.String("action", action))
			msg.Ack()
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("receive change events: %w", err)
	}
	return nil
}

// Apply decodes one event and evicts the affected cache entries.
func (s *Subscriber) Apply(ctx context.Context, data []byte) (string, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		metrics.ObserveInvalidation(ActionMalformed)
		return ActionMalformed, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	if ev.Collection != MediaCollection {
		metrics.ObserveInvalidation(ActionIgnored)
		return ActionIgnored, nil
	}
	switch strings.ToLower(ev.Operation) {
	case "update", "delete":
	default:
		metrics.ObserveInvalidation(ActionIgnored)
		return ActionIgnored, nil
	}

	if ev.Filename == "" {
		if err := s.cache.Clear(ctx); err != nil {
			return ActionClear, fmt.Errorf("clear cache: %w", err)
		}
		metrics.ObserveInvalidation(ActionClear)
		return ActionClear, nil
	}

	if err := s.cache.Delete(ctx, ev.Filename); err != nil {
		return ActionDelete, fmt.Errorf("delete cache entry %q: %w", ev.Filename, err)
	}
	metrics.ObserveInvalidation(ActionDelete)
	return ActionDelete, nil
}
