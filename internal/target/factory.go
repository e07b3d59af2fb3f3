package target

import (
	"context"
	"fmt"
)

// NewTarget creates the backend named by cfg.Type and wraps it in a
// RetryTarget when cfg.MaxRetries > 0.
func NewTarget(ctx context.Context, cfg Config) (Target, error) {
	var (
		t   Target
		err error
	)

	switch cfg.Type {
	case "s3":
		t, err = newS3Target(ctx, cfg)
	case "gcs":
		t, err = newGCSTarget(ctx, cfg)
	case "azure":
		t, err = newAzureTarget(cfg)
	case "memory":
		t = SharedMemoryTarget(cfg.Name)
	default:
		return nil, fmt.Errorf("unsupported target type: %q (must be s3, gcs, azure, or memory)", cfg.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("creating %s target %q: %w", cfg.Type, cfg.Name, err)
	}

	if cfg.MaxRetries > 0 {
		t = NewRetryTarget(t, cfg.MaxRetries, cfg.RetryBackoff)
	}

	return t, nil
}
