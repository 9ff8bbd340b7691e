package providers

import (
	"context"
	"encoding/json"
)

// LocalProvider is the no-credentials fallback. Every call yields an empty
// object of the requested schema, which keeps the pipeline runnable in
// development without producing fabricated facts.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (l *LocalProvider) Generate(ctx context.Context, req Request) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return json.RawMessage(`{}`), nil
}

func (l *LocalProvider) Name() string {
	return "local"
}
