package providers

import (
	"context"
	"encoding/json"
)

// Request is one structured-generation call: a prompt plus the JSON schema
// the returned value must satisfy.
type Request struct {
	System     string
	Prompt     string
	SchemaName string
	Schema     map[string]interface{}
}

// Provider is the opaque structured-generation model. It returns a raw JSON
// value conforming to the request schema, or fails. No retry or backoff is
// implemented here; retry is a policy of the HTTP-boundary caller.
type Provider interface {
	Generate(ctx context.Context, req Request) (json.RawMessage, error)
	Name() string
}
