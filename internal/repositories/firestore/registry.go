package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/peoplehub/hr-api/internal/platform/firestore"
	"github.com/peoplehub/hr-api/internal/repositories"
)

// Registry assembles every Firestore-backed repository behind the repositories.Registry
// contract so the container and the API binary share one wiring path.
type Registry struct {
	provider     *pfirestore.Provider
	applications *ApplicationRepository
	history      *StatusHistoryRepository
	interviews   *InterviewRepository
	offers       *OfferRepository
	terminations *TerminationRepository
	clearances   *ClearanceRepository
	counters     *CounterRepository
	auditLogs    *AuditLogRepository
	health       repositories.HealthRepository
}

// RegistryOption customises registry assembly.
type RegistryOption func(*Registry)

// WithHealthRepository attaches the dependency health collector surfaced by readiness probes.
func WithHealthRepository(health repositories.HealthRepository) RegistryOption {
	return func(r *Registry) {
		r.health = health
	}
}

// NewRegistry constructs the full repository set for the given provider.
func NewRegistry(provider *pfirestore.Provider, opts ...RegistryOption) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry: provider is required")
	}

	reg := &Registry{provider: provider}
	for _, opt := range opts {
		if opt != nil {
			opt(reg)
		}
	}

	var err error
	if reg.applications, err = NewApplicationRepository(provider); err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}
	if reg.history, err = NewStatusHistoryRepository(provider); err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}
	if reg.interviews, err = NewInterviewRepository(provider); err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}
	if reg.offers, err = NewOfferRepository(provider); err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}
	if reg.terminations, err = NewTerminationRepository(provider); err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}
	if reg.clearances, err = NewClearanceRepository(provider); err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}
	if reg.counters, err = NewCounterRepository(provider); err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}
	if reg.auditLogs, err = NewAuditLogRepository(provider); err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}

	return reg, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Applications returns the application repository.
func (r *Registry) Applications() repositories.ApplicationRepository {
	if r == nil || r.applications == nil {
		return nil
	}
	return r.applications
}

// StatusHistory returns the status history repository.
func (r *Registry) StatusHistory() repositories.StatusHistoryRepository {
	if r == nil || r.history == nil {
		return nil
	}
	return r.history
}

// Interviews returns the interview repository.
func (r *Registry) Interviews() repositories.InterviewRepository {
	if r == nil || r.interviews == nil {
		return nil
	}
	return r.interviews
}

// Offers returns the offer repository.
func (r *Registry) Offers() repositories.OfferRepository {
	if r == nil || r.offers == nil {
		return nil
	}
	return r.offers
}

// Terminations returns the termination repository.
func (r *Registry) Terminations() repositories.TerminationRepository {
	if r == nil || r.terminations == nil {
		return nil
	}
	return r.terminations
}

// Clearances returns the clearance checklist repository.
func (r *Registry) Clearances() repositories.ClearanceRepository {
	if r == nil || r.clearances == nil {
		return nil
	}
	return r.clearances
}

// Counters returns the counter repository.
func (r *Registry) Counters() repositories.CounterRepository {
	if r == nil || r.counters == nil {
		return nil
	}
	return r.counters
}

// AuditLogs returns the audit log repository.
func (r *Registry) AuditLogs() repositories.AuditLogRepository {
	if r == nil || r.auditLogs == nil {
		return nil
	}
	return r.auditLogs
}

// Health returns the dependency health repository when configured.
func (r *Registry) Health() repositories.HealthRepository {
	if r == nil || r.health == nil {
		return nil
	}
	return r.health
}

// RunInTx executes fn inside a Firestore transaction scope.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("firestore registry: transaction function is required")
	}
	if r == nil || r.provider == nil {
		return fn(ctx)
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	return client.RunTransaction(ctx, func(txCtx context.Context, _ *firestore.Transaction) error {
		return fn(txCtx)
	})
}

var _ repositories.Registry = (*Registry)(nil)
