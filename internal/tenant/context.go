package tenant

import "context"

type contextKey string

const siteKey contextKey = "site"

// WithSite stores the resolved site config on ctx.
func WithSite(ctx context.Context, cfg Config) context.Context {
	return context.WithValue(ctx, siteKey, cfg)
}

// FromContext returns the resolved site config, if any.
func FromContext(ctx context.Context) (Config, bool) {
	cfg, ok := ctx.Value(siteKey).(Config)
	return cfg, ok
}
