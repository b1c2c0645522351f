package actions

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/InteriMed/Medishift-sub005/internal/actions/schema"
	audit "github.com/InteriMed/Medishift-sub005/pkg/platform/audit"
)

// RiskLevel drives audit severity and whether audit writes go through
// synchronously.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Metadata describes an action beyond its contract.
type Metadata struct {
	Risk RiskLevel
	// AutoSurface marks results the client should show without being asked.
	AutoSurface bool
	// Category overrides the audit category derived from risk.
	Category audit.EventCategory
	Flags    []string
}

// HandlerFunc receives the validated, normalized input.
type HandlerFunc func(ctx context.Context, input map[string]any, ec *ExecutionContext) (any, error)

// Definition is an immutable action descriptor.
type Definition struct {
	ID          string
	Permission  string
	Label       string
	Description string
	Keywords    []string
	Schema      schema.Schema
	Metadata    Metadata
	Handler     HandlerFunc
}

// Spec is a Definition without its handler, for use with Define.
type Spec struct {
	ID          string
	Permission  string
	Label       string
	Description string
	Keywords    []string
	Schema      schema.Schema
	Metadata    Metadata
}

// Define binds a typed handler to a spec. The validated payload is decoded
// into In using its json tags, so In must only name fields the schema
// declares.
func Define[In any, Out any](spec Spec, handler func(ctx context.Context, in In, ec *ExecutionContext) (Out, error)) Definition {
	return Definition{
		ID:          spec.ID,
		Permission:  spec.Permission,
		Label:       spec.Label,
		Description: spec.Description,
		Keywords:    spec.Keywords,
		Schema:      spec.Schema,
		Metadata:    spec.Metadata,
		Handler: func(ctx context.Context, input map[string]any, ec *ExecutionContext) (any, error) {
			var in In
			if err := decode(input, &in); err != nil {
				return nil, fmt.Errorf("decode %s input: %w", spec.ID, err)
			}
			return handler(ctx, in, ec)
		},
	}
}

func decode(input map[string]any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      target,
		ErrorUnused: false,
		ZeroFields:  true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
