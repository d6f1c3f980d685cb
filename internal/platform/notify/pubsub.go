package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/peoplehub/hr-api/internal/services"
)

// PubSubCandidateNotifier publishes candidate-facing notifications to a Pub/Sub topic.
type PubSubCandidateNotifier struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubCandidateNotifier constructs a Pub/Sub backed candidate notifier.
func NewPubSubCandidateNotifier(topic *pubsub.Topic) (*PubSubCandidateNotifier, error) {
	if topic == nil {
		return nil, errors.New("pubsub candidate notifier: topic is required")
	}
	return &PubSubCandidateNotifier{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// NotifyCandidate enqueues a notification message on the configured topic.
func (p *PubSubCandidateNotifier) NotifyCandidate(ctx context.Context, notification services.CandidateNotification) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub candidate notifier: not initialised")
	}

	data, err := p.marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal candidate notification: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "candidateId", notification.CandidateID)
	setAttr(attrs, "applicationId", notification.ApplicationID)
	setAttr(attrs, "template", notification.Template)
	setAttr(attrs, "locale", notification.Locale)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish candidate notification: %w", err)
	}
	return nil
}

// PubSubLifecycleEventPublisher publishes workflow domain events to a Pub/Sub topic.
type PubSubLifecycleEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubLifecycleEventPublisher constructs a Pub/Sub backed lifecycle event publisher.
func NewPubSubLifecycleEventPublisher(topic *pubsub.Topic) (*PubSubLifecycleEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub lifecycle publisher: topic is required")
	}
	return &PubSubLifecycleEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishLifecycleEvent enqueues a workflow event message on the configured topic.
func (p *PubSubLifecycleEventPublisher) PublishLifecycleEvent(ctx context.Context, event services.LifecycleEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub lifecycle publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return fmt.Errorf("marshal lifecycle event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "entityId", event.EntityID)
	setAttr(attrs, "entityKind", event.EntityKind)
	setAttr(attrs, "actorId", event.ActorID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish lifecycle event: %w", err)
	}
	return nil
}

// PubSubSettlementPublisher publishes settlement finalization events. Callers treat
// publish failures as hard errors, so errors are never swallowed here.
type PubSubSettlementPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubSettlementPublisher constructs a Pub/Sub backed settlement publisher.
func NewPubSubSettlementPublisher(topic *pubsub.Topic) (*PubSubSettlementPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub settlement publisher: topic is required")
	}
	return &PubSubSettlementPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishSettlementFinalized enqueues a settlement event on the configured topic.
func (p *PubSubSettlementPublisher) PublishSettlementFinalized(ctx context.Context, event services.SettlementEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub settlement publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return fmt.Errorf("marshal settlement event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "terminationId", event.TerminationID)
	setAttr(attrs, "employeeId", event.EmployeeID)
	setAttr(attrs, "contractId", event.ContractID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish settlement event: %w", err)
	}
	return nil
}

// PubSubOnboardingDispatcher requests onboarding checklist creation via Pub/Sub.
// The returned ref is derived from the Pub/Sub message ID so repeat dispatches
// for the same offer stay traceable.
type PubSubOnboardingDispatcher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubOnboardingDispatcher constructs a Pub/Sub backed onboarding dispatcher.
func NewPubSubOnboardingDispatcher(topic *pubsub.Topic) (*PubSubOnboardingDispatcher, error) {
	if topic == nil {
		return nil, errors.New("pubsub onboarding dispatcher: topic is required")
	}
	return &PubSubOnboardingDispatcher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// RequestOnboardingChecklist enqueues a checklist request and returns its handle.
func (p *PubSubOnboardingDispatcher) RequestOnboardingChecklist(ctx context.Context, req services.OnboardingChecklistRequest) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub onboarding dispatcher: not initialised")
	}

	data, err := p.marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal onboarding request: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "offerId", req.OfferID)
	setAttr(attrs, "applicationId", req.ApplicationID)
	setAttr(attrs, "candidateId", req.CandidateID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish onboarding request: %w", err)
	}
	return fmt.Sprintf("checklists/%s", id), nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
