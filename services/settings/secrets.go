package settings

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// SecretStore holds per-agent secrets, the highest-precedence settings
// layer. Secrets are copied into the AgentContext per invocation so the
// resolver never holds a reference to live store state.
type SecretStore struct {
	mu      sync.RWMutex
	secrets map[string]map[string]string
}

// NewSecretStore creates an empty secret store
func NewSecretStore() *SecretStore {
	return &SecretStore{secrets: make(map[string]map[string]string)}
}

// Set stores one secret for an agent
func (s *SecretStore) Set(agentID, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	layer, ok := s.secrets[agentID]
	if !ok {
		layer = make(map[string]string)
		s.secrets[agentID] = layer
	}
	layer[key] = value
}

// LoadAgentFile merges a YAML file of key-value pairs into the agent's
// secrets
func (s *SecretStore) LoadAgentFile(agentID, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read secrets file: %w", err)
	}

	var values map[string]string
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parse secrets file %s: %w", path, err)
	}

	for key, value := range values {
		s.Set(agentID, key, value)
	}
	return nil
}

// SecretsForAgent returns a copy of the agent's secrets, or nil when the
// agent has none
func (s *SecretStore) SecretsForAgent(agentID string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	layer, ok := s.secrets[agentID]
	if !ok {
		return nil
	}

	out := make(map[string]string, len(layer))
	for key, value := range layer {
		out[key] = value
	}
	return out
}
