package actions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InteriMed/Medishift-sub005/internal/actions/schema"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
)

func principalID(s string) id.PrincipalID { return id.PrincipalID(s) }

func noop(context.Context, map[string]any, *ExecutionContext) (any, error) { return nil, nil }

func def(actionID string) Definition {
	return Definition{
		ID:         actionID,
		Permission: "x.run",
		Label:      actionID,
		Schema:     schema.New(schema.String("name").Required()),
		Metadata:   Metadata{Risk: RiskLow},
		Handler:    noop,
	}
}

func TestRegister(t *testing.T) {
	t.Run("duplicate id fails and adds nothing", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(def("a.one")))

		err := r.Register(def("a.two"), def("a.one"))
		require.Error(t, err)
		assert.Equal(t, []string{"a.one"}, r.IDs())
	})

	t.Run("duplicate inside one batch", func(t *testing.T) {
		r := NewRegistry()
		assert.Error(t, r.Register(def("a.one"), def("a.one")))
		assert.Empty(t, r.IDs())
	})

	t.Run("malformed definitions", func(t *testing.T) {
		noPerm := def("a.one")
		noPerm.Permission = ""
		noHandler := def("a.one")
		noHandler.Handler = nil
		badRisk := def("a.one")
		badRisk.Metadata.Risk = "EXTREME"

		for name, d := range map[string]Definition{
			"flat id":    def("flat"),
			"upper id":   def("Calendar.Request"),
			"no perm":    noPerm,
			"no handler": noHandler,
			"bad risk":   badRisk,
		} {
			t.Run(name, func(t *testing.T) {
				assert.Error(t, NewRegistry().Register(d))
			})
		}
	})

	t.Run("must register panics", func(t *testing.T) {
		r := NewRegistry()
		r.MustRegister(def("a.one"))
		assert.Panics(t, func() { r.MustRegister(def("a.one")) })
	})
}

func TestLookup(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(def("a.one"))

	got, err := r.Lookup("a.one")
	require.NoError(t, err)
	assert.Equal(t, "a.one", got.ID)

	_, err = r.Lookup("a.missing")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestCatalog(t *testing.T) {
	r := NewRegistry()
	high := def("b.two")
	high.Metadata.Risk = RiskHigh
	r.MustRegister(high, def("a.one"))

	cat := r.Catalog()
	require.Len(t, cat, 2)
	assert.Equal(t, "a.one", cat[0].ID)
	assert.Equal(t, RiskHigh, cat[1].Risk)
	assert.Equal(t, []string{"name"}, cat[0].InputSchema["required"])
}

type echoIn struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestDefineDecodesTypedInput(t *testing.T) {
	d := Define(Spec{
		ID:         "a.echo",
		Permission: "x.run",
		Metadata:   Metadata{Risk: RiskLow},
	}, func(_ context.Context, in echoIn, _ *ExecutionContext) (string, error) {
		return in.Name + ":" + string(rune('0'+in.Count)), nil
	})

	out, err := d.Handler(context.Background(), map[string]any{"name": "bob", "count": int64(3)}, nil)
	require.NoError(t, err)
	assert.Equal(t, "bob:3", out)
}
