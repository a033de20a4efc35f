package tax

import (
	"context"

	"github.com/go-faster/errors"
)

// Resolver picks the configuration that applies to a sale.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns, in order of preference, the requested configuration, the
// company default, or the system default. It returns nil when none exists.
// A requested id that is unknown or owned by another company fails with
// ErrInvalidConfiguration.
func (r *Resolver) Resolve(ctx context.Context, companyID, requestedID string) (*Configuration, error) {
	if requestedID != "" {
		cfg, err := r.repo.GetByID(ctx, requestedID)
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, errors.Wrapf(ErrInvalidConfiguration, "id %q", requestedID)
		case err != nil:
			return nil, errors.Wrap(err, "get tax configuration")
		}
		if !cfg.Global() && cfg.CompanyID != companyID {
			return nil, errors.Wrapf(ErrInvalidConfiguration, "id %q", requestedID)
		}
		return cfg, nil
	}

	cfg, err := r.repo.CompanyDefault(ctx, companyID)
	switch {
	case err == nil:
		return cfg, nil
	case !errors.Is(err, ErrNotFound):
		return nil, errors.Wrap(err, "get company default tax configuration")
	}

	cfg, err = r.repo.SystemDefault(ctx)
	switch {
	case err == nil:
		return cfg, nil
	case errors.Is(err, ErrNotFound):
		return nil, nil
	default:
		return nil, errors.Wrap(err, "get system default tax configuration")
	}
}
