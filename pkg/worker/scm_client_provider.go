package worker

import (
	"context"
	"errors"

	"reviewhook/pkg/auth"
	"reviewhook/pkg/event"
	"reviewhook/pkg/scm"
)

// SCMClientProvider resolves platform API clients for consumed triggers.
type SCMClientProvider struct {
	resolver auth.Resolver
	factory  *scm.Factory
}

// NewSCMClientProvider creates a provider that resolves auth and builds SCM clients.
func NewSCMClientProvider(cfg auth.Config) *SCMClientProvider {
	return &SCMClientProvider{
		resolver: auth.NewResolver(cfg),
		factory:  scm.NewFactory(cfg),
	}
}

// NewSCMClientProviderWithResolver creates a provider with custom resolver/factory.
func NewSCMClientProviderWithResolver(resolver auth.Resolver, factory *scm.Factory) *SCMClientProvider {
	return &SCMClientProvider{resolver: resolver, factory: factory}
}

// Client resolves a platform-specific SCM client for the given event.
func (p *SCMClientProvider) Client(ctx context.Context, evt *Event) (interface{}, error) {
	if p == nil || p.resolver == nil || p.factory == nil {
		return nil, errors.New("scm client provider is not configured")
	}
	if evt == nil {
		return nil, errors.New("event is required")
	}
	authCtx, err := p.resolver.Resolve(ctx, event.Platform(evt.Platform), evt.Payload)
	if err != nil {
		return nil, err
	}
	return p.factory.NewClient(ctx, authCtx)
}

// SCMClient returns the typed client from an event if available.
func SCMClient(evt *Event) (scm.Client, bool) {
	if evt == nil {
		return nil, false
	}
	client, ok := evt.Client.(scm.Client)
	return client, ok
}
