package actions

import (
	"fmt"
	"regexp"
	"sort"

	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
)

var actionIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)+$`)

// Registry resolves action ids to definitions. It is built once at boot and
// then only read, so lookups take no lock.
type Registry struct {
	defs map[string]Definition
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds definitions. It fails on a malformed definition or an id
// that is already registered; nothing is added when any definition fails.
func (r *Registry) Register(defs ...Definition) error {
	batch := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		if err := checkDefinition(d); err != nil {
			return err
		}
		if _, dup := r.defs[d.ID]; dup {
			return fmt.Errorf("action %q already registered", d.ID)
		}
		if _, dup := batch[d.ID]; dup {
			return fmt.Errorf("action %q registered twice", d.ID)
		}
		batch[d.ID] = struct{}{}
	}
	for _, d := range defs {
		r.defs[d.ID] = d
	}
	return nil
}

// MustRegister panics on failure. Use at process start.
func (r *Registry) MustRegister(defs ...Definition) {
	if err := r.Register(defs...); err != nil {
		panic(err)
	}
}

func checkDefinition(d Definition) error {
	switch {
	case !actionIDPattern.MatchString(d.ID):
		return fmt.Errorf("action id %q must be dot-namespaced lowercase", d.ID)
	case d.Permission == "":
		return fmt.Errorf("action %q has no required permission", d.ID)
	case d.Handler == nil:
		return fmt.Errorf("action %q has no handler", d.ID)
	}
	switch d.Metadata.Risk {
	case RiskLow, RiskMedium, RiskHigh:
	default:
		return fmt.Errorf("action %q has invalid risk level %q", d.ID, d.Metadata.Risk)
	}
	return nil
}

// Lookup returns the definition for id, or a not-found error.
func (r *Registry) Lookup(id string) (Definition, error) {
	d, ok := r.defs[id]
	if !ok {
		return Definition{}, dErrors.Newf(dErrors.CodeNotFound, "unknown action %q", truncate(id, 128))
	}
	return d, nil
}

// IDs returns every registered id, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CatalogEntry is the public description of one action.
type CatalogEntry struct {
	ID          string         `json:"id"`
	Label       string         `json:"label"`
	Description string         `json:"description,omitempty"`
	Keywords    []string       `json:"keywords,omitempty"`
	Permission  string         `json:"permission"`
	Risk        RiskLevel      `json:"risk"`
	AutoSurface bool           `json:"autoSurface"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Catalog describes every action, sorted by id.
func (r *Registry) Catalog() []CatalogEntry {
	ids := r.IDs()
	out := make([]CatalogEntry, 0, len(ids))
	for _, id := range ids {
		d := r.defs[id]
		out = append(out, CatalogEntry{
			ID:          d.ID,
			Label:       d.Label,
			Description: d.Description,
			Keywords:    d.Keywords,
			Permission:  d.Permission,
			Risk:        d.Metadata.Risk,
			AutoSurface: d.Metadata.AutoSurface,
			InputSchema: d.Schema.JSONSchema(),
		})
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
