package config

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/stationops/wrench/pkg/domain/interfaces"
	"github.com/stationops/wrench/pkg/domain/model"
	"github.com/stationops/wrench/pkg/domain/policy"
	"github.com/stationops/wrench/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

// SeedConfig is the TOML-described bootstrap data: connectors plus the
// local technician and parts directories, and the default approval policy.
type SeedConfig struct {
	Policy      Policy       `toml:"policy"`
	Connectors  []Connector  `toml:"connector"`
	Technicians []Technician `toml:"technician"`
	Parts       []Part       `toml:"part"`
}

// Policy is the default approval policy applied when a plan request does
// not carry its own mode or rules.
type Policy struct {
	Mode    string          `toml:"mode"`
	Actions map[string]bool `toml:"actions"`
	Risk    map[string]bool `toml:"risk"`
}

// Connector describes one external JSON-RPC backend
type Connector struct {
	ID      string `toml:"id"`
	Name    string `toml:"name"`
	BaseURL string `toml:"base_url"`
	Enabled bool   `toml:"enabled"`
	Auth    string `toml:"auth"`

	Token       string `toml:"token"`
	HeaderName  string `toml:"header_name"`
	HeaderValue string `toml:"header_value"`

	ClientID              string   `toml:"client_id"`
	ClientSecret          string   `toml:"client_secret"`
	IssuerURL             string   `toml:"issuer_url"`
	AuthorizationEndpoint string   `toml:"authorization_endpoint"`
	TokenEndpoint         string   `toml:"token_endpoint"`
	Scopes                []string `toml:"scopes"`
	Resource              string   `toml:"resource"`
	Audience              string   `toml:"audience"`
}

// Validate checks if the Connector is valid
func (c *Connector) Validate() error {
	return c.Model().Validate()
}

// Model converts the TOML entry to the domain connector
func (c *Connector) Model() *model.Connector {
	auth := c.Auth
	if auth == "" {
		auth = "none"
	}
	return &model.Connector{
		ID:      types.ConnectorID(c.ID),
		Name:    c.Name,
		BaseURL: c.BaseURL,
		Enabled: c.Enabled,
		Auth:    types.AuthScheme(auth),
		AuthConf: model.AuthConfig{
			Token:                 c.Token,
			HeaderName:            c.HeaderName,
			HeaderValue:           c.HeaderValue,
			ClientID:              c.ClientID,
			ClientSecret:          c.ClientSecret,
			IssuerURL:             c.IssuerURL,
			AuthorizationEndpoint: c.AuthorizationEndpoint,
			TokenEndpoint:         c.TokenEndpoint,
			Scopes:                c.Scopes,
			Resource:              c.Resource,
			Audience:              c.Audience,
		},
	}
}

// Technician is one worker directory entry
type Technician struct {
	ID              string  `toml:"id"`
	Name            string  `toml:"name"`
	Specialization  string  `toml:"specialization"`
	Status          string  `toml:"status"`
	Rating          float64 `toml:"rating"`
	YearsExperience int     `toml:"years_experience"`
}

// Validate checks if the Technician is valid
func (t *Technician) Validate() error {
	if t.ID == "" {
		return goerr.New("technician id is required")
	}
	if t.Name == "" {
		return goerr.New("technician name is required", goerr.V("id", t.ID))
	}
	if t.Specialization == "" {
		return goerr.New("technician specialization is required", goerr.V("id", t.ID))
	}
	return nil
}

// Part is one parts directory entry
type Part struct {
	ID                string `toml:"id"`
	Name              string `toml:"name"`
	QuantityAvailable int    `toml:"quantity_available"`
	ReorderThreshold  int    `toml:"reorder_threshold"`
}

// Validate checks if the Part is valid
func (p *Part) Validate() error {
	if p.ID == "" {
		return goerr.New("part id is required")
	}
	if p.Name == "" {
		return goerr.New("part name is required", goerr.V("id", p.ID))
	}
	if p.QuantityAvailable < 0 {
		return goerr.New("part quantity must not be negative",
			goerr.V("id", p.ID), goerr.V("quantity", p.QuantityAvailable))
	}
	return nil
}

// Seed holds the CLI flag for the seed config file
type Seed struct {
	path string
}

// Flags returns CLI flags for seed configuration
func (s *Seed) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "seed-config",
			Usage:       "Path to the TOML seed configuration (connectors, technicians, parts, policy)",
			Sources:     cli.EnvVars("WRENCH_SEED_CONFIG"),
			Destination: &s.path,
		},
	}
}

// Load parses and validates the configured seed file. Returns nil when no
// file is configured.
func (s *Seed) Load() (*SeedConfig, error) {
	if s.path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read seed config", goerr.V("path", s.path))
	}

	var cfg SeedConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse seed config", goerr.V("path", s.path))
	}
	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid seed config", goerr.V("path", s.path))
	}

	return &cfg, nil
}

// Validate checks every entry of the seed config
func (cfg *SeedConfig) Validate() error {
	if cfg.Policy.Mode != "" && !types.PolicyMode(cfg.Policy.Mode).IsValid() {
		return goerr.New("invalid policy mode", goerr.V("mode", cfg.Policy.Mode))
	}
	for i := range cfg.Connectors {
		if err := cfg.Connectors[i].Validate(); err != nil {
			return err
		}
	}
	for i := range cfg.Technicians {
		if err := cfg.Technicians[i].Validate(); err != nil {
			return err
		}
	}
	for i := range cfg.Parts {
		if err := cfg.Parts[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Rules converts the policy override tables to the domain representation.
// Returns nil when no override is configured.
func (cfg *SeedConfig) Rules() *policy.Rules {
	if len(cfg.Policy.Actions) == 0 && len(cfg.Policy.Risk) == 0 {
		return nil
	}
	rules := &policy.Rules{
		Actions: map[types.ActionType]bool{},
		Risk:    map[types.RiskLevel]bool{},
	}
	for k, v := range cfg.Policy.Actions {
		rules.Actions[types.ActionType(k)] = v
	}
	for k, v := range cfg.Policy.Risk {
		rules.Risk[types.RiskLevel(k)] = v
	}
	return rules
}

// Apply writes the seed data into the repository
func (cfg *SeedConfig) Apply(ctx context.Context, repo interfaces.Repository) error {
	for i := range cfg.Connectors {
		if _, err := repo.Connector().Put(ctx, cfg.Connectors[i].Model()); err != nil {
			return goerr.Wrap(err, "failed to seed connector",
				goerr.V("id", cfg.Connectors[i].ID))
		}
	}

	for i := range cfg.Technicians {
		t := cfg.Technicians[i]
		status := model.TechnicianStatus(t.Status)
		if status == "" {
			status = model.TechnicianAvailable
		}
		technician := &model.Technician{
			ID:              types.TechnicianID(t.ID),
			Name:            t.Name,
			Specialization:  t.Specialization,
			Status:          status,
			Rating:          t.Rating,
			YearsExperience: t.YearsExperience,
		}
		if _, err := repo.Technician().Put(ctx, technician); err != nil {
			return goerr.Wrap(err, "failed to seed technician", goerr.V("id", t.ID))
		}
	}

	for i := range cfg.Parts {
		p := cfg.Parts[i]
		part := &model.Part{
			ID:                types.PartID(p.ID),
			Name:              p.Name,
			QuantityAvailable: p.QuantityAvailable,
			ReorderThreshold:  p.ReorderThreshold,
		}
		if _, err := repo.Part().Put(ctx, part); err != nil {
			return goerr.Wrap(err, "failed to seed part", goerr.V("id", p.ID))
		}
	}

	return nil
}
