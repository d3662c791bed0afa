package discovery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"dlnacast.app/dlnacast/internal/domain"
)

// Finder is the discovery surface the resolver needs. *Service satisfies it.
type Finder interface {
	Discover(ctx context.Context, timeout time.Duration) ([]domain.Render, error)
	FetchRender(ctx context.Context, location string) (domain.Render, error)
}

// Resolver turns a RenderSpec into one or more render handles.
type Resolver struct {
	finder Finder
	logger *slog.Logger
}

func NewResolver(finder Finder, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{finder: finder, logger: logger}
}

// Resolve returns the single render selected by spec. ExplicitAddress fetches
// the descriptor directly and never triggers a discovery scan; the other
// kinds discover with the spec's timeout. NameQuery matches the friendly name
// case-insensitively as a substring, first match in response order winning.
func (r *Resolver) Resolve(ctx context.Context, spec domain.RenderSpec) (domain.Render, error) {
	switch spec.Kind {
	case domain.SpecExplicitAddress:
		return r.resolveAddress(ctx, spec)
	case domain.SpecNameQuery:
		return r.resolveQuery(ctx, spec)
	case domain.SpecFirst:
		return r.resolveFirst(ctx, spec)
	default:
		return domain.Render{}, &domain.ResolutionError{
			Code:    domain.CodeInvalidAddress,
			Spec:    spec,
			Message: "spec kind does not resolve to a single render",
		}
	}
}

// ResolveAll returns every discovered render for listing purposes. An empty
// listing is valid output, not a failure.
func (r *Resolver) ResolveAll(ctx context.Context, spec domain.RenderSpec) ([]domain.Render, error) {
	return r.finder.Discover(ctx, specTimeout(spec))
}

func (r *Resolver) resolveAddress(ctx context.Context, spec domain.RenderSpec) (domain.Render, error) {
	address := strings.TrimSpace(spec.Address)
	parsed, err := url.Parse(address)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return domain.Render{}, &domain.ResolutionError{
			Code:    domain.CodeInvalidAddress,
			Spec:    spec,
			Message: fmt.Sprintf("not an absolute http(s) URL: %q", address),
		}
	}

	r.logger.Debug("resolving render by address", slog.String("address", address))
	render, err := r.finder.FetchRender(ctx, address)
	if err != nil {
		return domain.Render{}, &domain.ResolutionError{
			Code:    domain.CodeNotFound,
			Spec:    spec,
			Message: err.Error(),
		}
	}
	return render, nil
}

func (r *Resolver) resolveQuery(ctx context.Context, spec domain.RenderSpec) (domain.Render, error) {
	renders, err := r.finder.Discover(ctx, specTimeout(spec))
	if err != nil {
		return domain.Render{}, err
	}

	query := strings.ToLower(strings.TrimSpace(spec.Query))
	for _, render := range renders {
		if strings.Contains(strings.ToLower(render.Name), query) {
			return render, nil
		}
	}

	return domain.Render{}, &domain.ResolutionError{
		Code:    domain.CodeNotFound,
		Spec:    spec,
		Message: fmt.Sprintf("no render matching %q among %d discovered", spec.Query, len(renders)),
	}
}

func (r *Resolver) resolveFirst(ctx context.Context, spec domain.RenderSpec) (domain.Render, error) {
	renders, err := r.finder.Discover(ctx, specTimeout(spec))
	if err != nil {
		return domain.Render{}, err
	}
	if len(renders) == 0 {
		return domain.Render{}, &domain.ResolutionError{
			Code:    domain.CodeNotFound,
			Spec:    spec,
			Message: "no renders discovered",
		}
	}
	return renders[0], nil
}

func specTimeout(spec domain.RenderSpec) time.Duration {
	if spec.TimeoutSeconds <= 0 {
		return defaultTimeout
	}
	return time.Duration(spec.TimeoutSeconds) * time.Second
}
