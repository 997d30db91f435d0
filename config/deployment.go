package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RoleGrant grants a module-scoped role at boot.
type RoleGrant struct {
	Module  string `mapstructure:"module" yaml:"module"`
	Role    string `mapstructure:"role" yaml:"role"`
	Address string `mapstructure:"address" yaml:"address"`
}

// DeploymentConfig describes the workflow instance to boot: module
// addresses, the payment token and the initial owners and roles.
type DeploymentConfig struct {
	// Manifest points to a YAML file that replaces the inline deployment.
	Manifest string `mapstructure:"manifest" yaml:"-"`

	Workflow         string `mapstructure:"workflow" yaml:"workflow"`
	Processor        string `mapstructure:"processor" yaml:"processor"`
	FundingManager   string `mapstructure:"funding_manager" yaml:"funding_manager"`
	BountyManager    string `mapstructure:"bounty_manager" yaml:"bounty_manager"`
	MilestoneManager string `mapstructure:"milestone_manager" yaml:"milestone_manager"`

	TokenSymbol     string `mapstructure:"token_symbol" yaml:"token_symbol"`
	ConformantToken bool   `mapstructure:"conformant_token" yaml:"conformant_token"`
	// InitialFunding is minted to the funding manager at boot.
	InitialFunding uint64 `mapstructure:"initial_funding" yaml:"initial_funding"`

	Owners                  []string    `mapstructure:"owners" yaml:"owners"`
	Roles                   []RoleGrant `mapstructure:"roles" yaml:"roles"`
	MilestoneUpdateTimelock int64       `mapstructure:"milestone_update_timelock" yaml:"milestone_update_timelock"`
}

// DefaultDeployment returns the single-node development deployment.
func DefaultDeployment() DeploymentConfig {
	return DeploymentConfig{
		Workflow:         "0xorchestrator",
		Processor:        "0xpaymentprocessor",
		FundingManager:   "0xfundingmanager",
		BountyManager:    "0xbountymanager",
		MilestoneManager: "0xmilestonemanager",
		TokenSymbol:      "ORCH",
		ConformantToken:  true,
		InitialFunding:   1_000_000_000,
		Owners:           []string{"0xowner"},
	}
}

// LoadDeployment reads a deployment manifest. Unset fields keep their defaults.
func LoadDeployment(path string) (DeploymentConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return DeploymentConfig{}, fmt.Errorf("reading deployment manifest %s: %w", path, err)
	}
	dep := DefaultDeployment()
	if err := yaml.Unmarshal(raw, &dep); err != nil {
		return DeploymentConfig{}, fmt.Errorf("parsing deployment manifest %s: %w", path, err)
	}
	dep.normalize()
	return dep, nil
}

// Marshal renders the deployment as a YAML manifest.
func (d DeploymentConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

func (d *DeploymentConfig) normalize() {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	d.Workflow = norm(d.Workflow)
	d.Processor = norm(d.Processor)
	d.FundingManager = norm(d.FundingManager)
	d.BountyManager = norm(d.BountyManager)
	d.MilestoneManager = norm(d.MilestoneManager)
	for i := range d.Owners {
		d.Owners[i] = norm(d.Owners[i])
	}
	for i := range d.Roles {
		d.Roles[i].Module = norm(d.Roles[i].Module)
		d.Roles[i].Address = norm(d.Roles[i].Address)
		d.Roles[i].Role = strings.ToUpper(strings.TrimSpace(d.Roles[i].Role))
	}
}

// Validate checks that every module has a distinct address.
func (d DeploymentConfig) Validate() error {
	addrs := map[string]string{
		"workflow":          d.Workflow,
		"processor":         d.Processor,
		"funding_manager":   d.FundingManager,
		"bounty_manager":    d.BountyManager,
		"milestone_manager": d.MilestoneManager,
	}
	seen := make(map[string]string, len(addrs))
	var errs []error
	for name, addr := range addrs {
		if addr == "" {
			errs = append(errs, fmt.Errorf("deployment.%s required", name))
			continue
		}
		if other, dup := seen[addr]; dup {
			errs = append(errs, fmt.Errorf("deployment.%s and deployment.%s share address %s", name, other, addr))
		}
		seen[addr] = name
	}
	if len(d.Owners) == 0 {
		errs = append(errs, errors.New("deployment.owners requires at least one owner"))
	}
	if d.MilestoneUpdateTimelock < 0 {
		errs = append(errs, errors.New("deployment.milestone_update_timelock must not be negative"))
	}
	for i, g := range d.Roles {
		if g.Module == "" || g.Role == "" || g.Address == "" {
			errs = append(errs, fmt.Errorf("deployment.roles[%d] needs module, role and address", i))
		}
	}
	return errors.Join(errs...)
}
