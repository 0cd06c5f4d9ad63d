// Copyright 2026 fanjia1024
// HashiCorp Vault secret store (KV v2)

package secrets

import (
	"context"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig Vault 配置
type VaultConfig struct {
	Address    string // Vault server address (e.g., http://vault:8200)
	Token      string // Vault token；为空时使用 VAULT_TOKEN
	Mount      string // KV v2 挂载点，默认 secret
	PathPrefix string // 每个 key 前的路径，如 research-agent
}

type vaultStore struct {
	client     *vault.Client
	mount      string
	pathPrefix string
}

// NewVaultStore 创建 Vault secret store；每个 key 存为 <mount>/data/<prefix>/<key> 下的 value 字段
func NewVaultStore(config VaultConfig) (Store, error) {
	cfg := vault.DefaultConfig()
	if config.Address != "" {
		cfg.Address = config.Address
	}
	cfg.MaxRetries = 0

	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if config.Token != "" {
		client.SetToken(config.Token)
	}

	mount := strings.Trim(config.Mount, "/")
	if mount == "" {
		mount = "secret"
	}
	return &vaultStore{
		client:     client,
		mount:      mount,
		pathPrefix: strings.Trim(config.PathPrefix, "/"),
	}, nil
}

func (v *vaultStore) Get(ctx context.Context, key string) (string, error) {
	secret, err := v.client.Logical().ReadWithContext(ctx, v.dataPath(key))
	if err != nil {
		return "", fmt.Errorf("failed to read secret from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	// KV v2 将字段放在 data.data 下
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if val, ok := data["value"].(string); ok {
		return val, nil
	}
	return "", fmt.Errorf("%w: %s has no value field", ErrNotFound, key)
}

func (v *vaultStore) Set(ctx context.Context, key string, value string) error {
	_, err := v.client.Logical().WriteWithContext(ctx, v.dataPath(key), map[string]interface{}{
		"data": map[string]interface{}{"value": value},
	})
	if err != nil {
		return fmt.Errorf("failed to write secret to vault: %w", err)
	}
	return nil
}

func (v *vaultStore) Delete(ctx context.Context, key string) error {
	if _, err := v.client.Logical().DeleteWithContext(ctx, v.metadataPath(key)); err != nil {
		return fmt.Errorf("failed to delete secret from vault: %w", err)
	}
	return nil
}

func (v *vaultStore) dataPath(key string) string {
	return v.mount + "/data/" + v.join(key)
}

func (v *vaultStore) metadataPath(key string) string {
	return v.mount + "/metadata/" + v.join(key)
}

func (v *vaultStore) join(key string) string {
	if v.pathPrefix == "" {
		return key
	}
	return v.pathPrefix + "/" + key
}
