package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_Precedence(t *testing.T) {
	env := map[string]string{
		KeyFallbackBaseURL: "https://env.example.com",
		KeyFallbackEnabled: "false",
	}
	r := NewResolver(
		WithDefault(KeyFallbackBaseURL, "https://default.example.com"),
		WithEnvFunc(func(key string) string { return env[key] }),
	)
	agent := AgentContext{AgentID: "agent-1"}

	t.Run("environment overrides defaults", func(t *testing.T) {
		resolved := r.Resolve(agent)
		assert.Equal(t, "https://env.example.com", resolved.FallbackBaseURL)
		assert.False(t, resolved.FallbackEnabled)
	})

	t.Run("agent settings override environment", func(t *testing.T) {
		r.Set("agent-1", KeyFallbackBaseURL, "https://agent.example.com")
		r.Set("agent-1", KeyFallbackEnabled, "true")

		resolved := r.Resolve(agent)
		assert.Equal(t, "https://agent.example.com", resolved.FallbackBaseURL)
		assert.True(t, resolved.FallbackEnabled)

		// Other agents are unaffected
		other := r.Resolve(AgentContext{AgentID: "agent-2"})
		assert.Equal(t, "https://env.example.com", other.FallbackBaseURL)
	})

	t.Run("secrets override agent settings", func(t *testing.T) {
		withSecrets := AgentContext{
			AgentID: "agent-1",
			Secrets: map[string]string{
				KeyFallbackBaseURL: "https://secret.example.com",
				KeyFallbackAPIKey:  "sk-secret",
			},
		}
		resolved := r.Resolve(withSecrets)
		assert.Equal(t, "https://secret.example.com", resolved.FallbackBaseURL)
		assert.Equal(t, "sk-secret", resolved.FallbackAPIKey)
	})

	t.Run("empty value counts as absent", func(t *testing.T) {
		r.Set("agent-3", KeyFallbackBaseURL, "")
		resolved := r.Resolve(AgentContext{
			AgentID: "agent-3",
			Secrets: map[string]string{KeyFallbackBaseURL: ""},
		})
		assert.Equal(t, "https://env.example.com", resolved.FallbackBaseURL)
	})
}

func TestResolver_SetVisibleToNextResolve(t *testing.T) {
	r := NewResolver(WithEnvFunc(func(string) string { return "" }))
	agent := AgentContext{AgentID: "agent-1"}

	before := r.Resolve(agent)
	assert.True(t, before.FallbackEnabled)

	r.Set("agent-1", KeyFallbackEnabled, "false")
	after := r.Resolve(agent)
	assert.False(t, after.FallbackEnabled)
}

func TestResolver_TimeoutParsing(t *testing.T) {
	r := NewResolver(WithEnvFunc(func(string) string { return "" }))
	agent := AgentContext{AgentID: "agent-1"}

	assert.Equal(t, 30*time.Second, r.Resolve(agent).FallbackTimeout)

	r.Set("agent-1", KeyFallbackTimeoutMS, "2500")
	assert.Equal(t, 2500*time.Millisecond, r.Resolve(agent).FallbackTimeout)

	// Garbage falls back to the default
	r.Set("agent-1", KeyFallbackTimeoutMS, "soon")
	assert.Equal(t, 30*time.Second, r.Resolve(agent).FallbackTimeout)
}

func TestResolver_LoadAgentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	content := "FALLBACK_BASE_URL: https://file.example.com\nFALLBACK_TIMEOUT_MS: \"1500\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	r := NewResolver(WithEnvFunc(func(string) string { return "" }))
	require.NoError(t, r.LoadAgentFile("agent-1", path))

	resolved := r.Resolve(AgentContext{AgentID: "agent-1"})
	assert.Equal(t, "https://file.example.com", resolved.FallbackBaseURL)
	assert.Equal(t, 1500*time.Millisecond, resolved.FallbackTimeout)

	assert.Error(t, r.LoadAgentFile("agent-1", filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestSettingsContext(t *testing.T) {
	ctx := context.Background()

	_, ok := FromContext(ctx)
	assert.False(t, ok)

	resolved := Resolved{FallbackBaseURL: "https://ctx.example.com", FallbackEnabled: true}
	got, ok := FromContext(NewContext(ctx, resolved))
	assert.True(t, ok)
	assert.Equal(t, resolved, got)
}
