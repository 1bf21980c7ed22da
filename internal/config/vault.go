package config

import (
	"fmt"

	"github.com/hashicorp/vault/api"
)

// vaultClient reads the gateway's secret bundle from a Vault KV v2
// mount. The overlay only understands string values, so everything
// else in the secret is dropped.
type vaultClient struct {
	api *api.Client
}

func newVaultClient(address, token string) (*vaultClient, error) {
	cfg := api.DefaultConfig()
	cfg.Address = address

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault client: %w", err)
	}
	client.SetToken(token)
	return &vaultClient{api: client}, nil
}

// readKV2 reads path from a KV v2 backend, unwraps the version-2 data
// envelope, and returns the string-valued keys.
func (v *vaultClient) readKV2(path string) (map[string]string, error) {
	secret, err := v.api.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no secret at %s", path)
	}
	inner, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s is not a kv2 secret", path)
	}

	out := make(map[string]string, len(inner))
	for key, val := range inner {
		if s, ok := val.(string); ok {
			out[key] = s
		}
	}
	return out, nil
}
