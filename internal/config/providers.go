package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/whalewatch/whaletx/internal/domain/model"
)

// ProviderEndpoint is one entry in a chain's ordered failover list.
type ProviderEndpoint struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"` // "rpc" (JSON-RPC node) or "explorer" (block explorer HTTP API)
	URL  string `yaml:"url"`
	Key  string `yaml:"key,omitempty"`

	// RatePerSec and Burst override the provider's default token bucket.
	RatePerSec float64 `yaml:"rate_per_sec,omitempty"`
	Burst      int     `yaml:"burst,omitempty"`
}

const (
	ProviderKindRPC      = "rpc"
	ProviderKindExplorer = "explorer"
)

type providersFile struct {
	Chains map[string][]ProviderEndpoint `yaml:"chains"`
}

// LoadProviders parses the YAML provider file into per-chain ordered
// endpoint lists. List order is failover order and is preserved.
func LoadProviders(path string) (map[model.Chain][]ProviderEndpoint, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}

	// ${VAR} placeholders let API keys live in the environment instead of
	// the checked-in file.
	expanded := []byte(os.ExpandEnv(string(raw)))

	var file providersFile
	if err := yaml.Unmarshal(expanded, &file); err != nil {
		return nil, fmt.Errorf("parse providers file %s: %w", path, err)
	}
	if len(file.Chains) == 0 {
		return nil, fmt.Errorf("providers file %s lists no chains", path)
	}

	out := make(map[model.Chain][]ProviderEndpoint, len(file.Chains))
	for name, endpoints := range file.Chains {
		chain, err := model.ParseChain(name)
		if err != nil {
			return nil, fmt.Errorf("providers file %s: %w", path, err)
		}
		if len(endpoints) == 0 {
			return nil, fmt.Errorf("chain %s lists no providers", name)
		}
		for i, ep := range endpoints {
			if ep.Name == "" || ep.URL == "" {
				return nil, fmt.Errorf("chain %s provider %d: name and url are required", name, i)
			}
			switch ep.Kind {
			case "", ProviderKindRPC:
				endpoints[i].Kind = ProviderKindRPC
			case ProviderKindExplorer:
			default:
				return nil, fmt.Errorf("chain %s provider %s: unknown kind %q", name, ep.Name, ep.Kind)
			}
		}
		out[chain] = endpoints
	}
	return out, nil
}
