package workforce

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
)

// Seed is the directory snapshot loaded at boot. The workforce directory is
// owned elsewhere; the server only needs a readable copy.
type Seed struct {
	Principals []SeedPrincipal `mapstructure:"principals"`
	Facilities []SeedFacility  `mapstructure:"facilities"`
}

type SeedPrincipal struct {
	ID             string              `mapstructure:"id"`
	OrgID          string              `mapstructure:"org_id"`
	Name           string              `mapstructure:"name"`
	Email          string              `mapstructure:"email"`
	Status         string              `mapstructure:"status"`
	Skills         []string            `mapstructure:"skills"`
	Certifications []SeedCertification `mapstructure:"certifications"`
}

type SeedCertification struct {
	Name      string `mapstructure:"name"`
	ExpiresOn string `mapstructure:"expires_on"`
	Status    string `mapstructure:"status"`
}

type SeedFacility struct {
	ID      string           `mapstructure:"id"`
	OrgID   string           `mapstructure:"org_id"`
	Name    string           `mapstructure:"name"`
	Members []SeedMembership `mapstructure:"members"`
}

type SeedMembership struct {
	Principal string `mapstructure:"principal"`
	Role      string `mapstructure:"role"`
	Manager   string `mapstructure:"manager"`
}

// LoadSeed reads a YAML or JSON seed file; the format follows the extension.
func LoadSeed(path string) (Seed, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Seed{}, fmt.Errorf("read workforce seed: %w", err)
	}
	var seed Seed
	if err := v.Unmarshal(&seed); err != nil {
		return Seed{}, fmt.Errorf("decode workforce seed: %w", err)
	}
	return seed, nil
}

// Apply writes the seed into an empty store. Principals default to ACTIVE
// and certifications to VALID.
func (s Seed) Apply(ctx context.Context, store Store) error {
	for _, sp := range s.Principals {
		if sp.ID == "" {
			return fmt.Errorf("workforce seed: principal without id")
		}
		p := Principal{
			ID:     id.PrincipalID(sp.ID),
			OrgID:  id.OrgID(sp.OrgID),
			Name:   sp.Name,
			Email:  sp.Email,
			Status: PrincipalStatus(orDefault(sp.Status, string(StatusActive))),
			Skills: sp.Skills,
		}
		for _, c := range sp.Certifications {
			p.Certifications = append(p.Certifications, Certification{
				Name:      c.Name,
				ExpiresOn: c.ExpiresOn,
				Status:    CertificationStatus(orDefault(c.Status, string(CertificationValid))),
			})
		}
		if _, err := store.SavePrincipal(ctx, p); err != nil {
			return fmt.Errorf("seed principal %s: %w", sp.ID, err)
		}
	}
	for _, sf := range s.Facilities {
		if sf.ID == "" {
			return fmt.Errorf("workforce seed: facility without id")
		}
		f := Facility{ID: id.FacilityID(sf.ID), OrgID: id.OrgID(sf.OrgID), Name: sf.Name}
		for _, m := range sf.Members {
			f.Members = append(f.Members, Membership{
				Principal: id.PrincipalID(m.Principal),
				Role:      Role(orDefault(m.Role, string(RoleEmployee))),
				Manager:   id.PrincipalID(m.Manager),
			})
		}
		if _, err := store.SaveFacility(ctx, f); err != nil {
			return fmt.Errorf("seed facility %s: %w", sf.ID, err)
		}
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
