package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/peoplehub/hr-api/internal/platform/config"
	"github.com/peoplehub/hr-api/internal/platform/textutil"
	"github.com/peoplehub/hr-api/internal/repositories"
	"github.com/peoplehub/hr-api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Applications services.ApplicationService
	Interviews   services.InterviewService
	Offers       services.OfferService
	Terminations services.TerminationService
	Lifecycle    services.LifecycleService
	Documents    services.DocumentService
	Counters     services.CounterService
	System       services.SystemService
	Audit        services.AuditLogService
}

// Integrations carries the external adapters that services publish through. All fields are
// optional; services degrade to local-only behaviour when an adapter is absent.
type Integrations struct {
	Notifier   services.CandidateNotifier
	Events     services.LifecycleEventPublisher
	Settlement services.SettlementPublisher
	Onboarding services.OnboardingDispatcher
	URLs       services.SignedURLIssuer
	Copier     services.ObjectCopier
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

type containerOptions struct {
	integrations Integrations
	build        services.BuildInfo
}

// Option customises container assembly.
type Option func(*containerOptions)

// WithIntegrations supplies the external publishers and signers used by the services.
func WithIntegrations(integrations Integrations) Option {
	return func(o *containerOptions) {
		o.integrations = integrations
	}
}

// WithBuildInfo records release metadata surfaced by the readiness endpoint.
func WithBuildInfo(build services.BuildInfo) Option {
	return func(o *containerOptions) {
		o.build = build
	}
}

// NewContainer constructs the runtime dependencies. Production wiring will provide real
// implementations, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	var options containerOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	svc, err := buildServices(ctx, reg, cfg, options)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, options containerOptions) (Services, error) {
	var svc Services
	if reg == nil {
		return svc, nil
	}
	integrations := options.integrations

	build := options.build
	if build.Environment == "" {
		build.Environment = cfg.Security.Environment
	}
	if build.StartedAt.IsZero() {
		build.StartedAt = time.Now().UTC()
	}

	if auditRepo := reg.AuditLogs(); auditRepo != nil {
		auditSvc, err := services.NewAuditLogService(services.AuditLogServiceDeps{
			Repository: auditRepo,
			Clock:      time.Now,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build audit log service: %w", err)
		}
		svc.Audit = auditSvc
	}

	counterRepo := reg.Counters()
	if counterRepo != nil {
		counterSvc, err := services.NewCounterService(services.CounterServiceDeps{
			Repository: counterRepo,
			Clock:      time.Now,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build counter service: %w", err)
		}
		svc.Counters = counterSvc
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            time.Now,
			Build:            build,
			Audit:            svc.Audit,
			Counters:         svc.Counters,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	applicationRepo := reg.Applications()
	offerRepo := reg.Offers()

	if applicationRepo != nil && reg.StatusHistory() != nil {
		applicationSvc, err := services.NewApplicationService(services.ApplicationServiceDeps{
			Applications: applicationRepo,
			History:      reg.StatusHistory(),
			Offers:       offerRepo,
			UnitOfWork:   reg,
			Clock:        time.Now,
			Notifier:     integrations.Notifier,
			Events:       integrations.Events,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build application service: %w", err)
		}
		svc.Applications = applicationSvc
	}

	if interviewRepo := reg.Interviews(); interviewRepo != nil && applicationRepo != nil {
		interviewSvc, err := services.NewInterviewService(services.InterviewServiceDeps{
			Interviews:   interviewRepo,
			Applications: applicationRepo,
			Clock:        time.Now,
			Sanitize:     textutil.Plain,
			Events:       integrations.Events,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build interview service: %w", err)
		}
		svc.Interviews = interviewSvc
	}

	if offerRepo != nil && applicationRepo != nil {
		offerSvc, err := services.NewOfferService(services.OfferServiceDeps{
			Offers:       offerRepo,
			Applications: applicationRepo,
			MinApprovers: cfg.Workflow.MinOfferApprovers,
			Clock:        time.Now,
			Sanitize:     textutil.Plain,
			Notifier:     integrations.Notifier,
			Onboarding:   integrations.Onboarding,
			Events:       integrations.Events,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build offer service: %w", err)
		}
		svc.Offers = offerSvc
	}

	if terminationRepo := reg.Terminations(); terminationRepo != nil && reg.Clearances() != nil {
		terminationSvc, err := services.NewTerminationService(services.TerminationServiceDeps{
			Terminations: terminationRepo,
			Clearances:   reg.Clearances(),
			Departments:  cfg.Workflow.ClearanceDepartments,
			Clock:        time.Now,
			Sanitize:     textutil.Plain,
			Settlement:   integrations.Settlement,
			Events:       integrations.Events,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build termination service: %w", err)
		}
		svc.Terminations = terminationSvc
	}

	if svc.Applications != nil && svc.Interviews != nil && svc.Offers != nil && svc.Terminations != nil {
		lifecycleSvc, err := services.NewLifecycleService(services.LifecycleServiceDeps{
			Applications: svc.Applications,
			Interviews:   svc.Interviews,
			Offers:       svc.Offers,
			Terminations: svc.Terminations,
			Audit:        svc.Audit,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build lifecycle service: %w", err)
		}
		svc.Lifecycle = lifecycleSvc
	}

	if integrations.URLs != nil {
		documentSvc, err := services.NewDocumentService(services.DocumentServiceDeps{
			URLs:               integrations.URLs,
			Copier:             integrations.Copier,
			ResumesBucket:      cfg.Storage.ResumesBucket,
			OfferLettersBucket: cfg.Storage.OfferLettersBucket,
			ExportsBucket:      cfg.Storage.ExportsBucket,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build document service: %w", err)
		}
		svc.Documents = documentSvc
	}

	return svc, nil
}
