package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveModel(t *testing.T) {
	t.Run("known slug", func(t *testing.T) {
		assert.Equal(t, "gemini-1.5-pro-latest", ResolveModel("gemini-pro"))
	})

	t.Run("empty slug falls back to default", func(t *testing.T) {
		assert.Equal(t, "gemini-1.5-flash-latest", ResolveModel(""))
	})

	t.Run("unknown slug silently falls back to default", func(t *testing.T) {
		assert.Equal(t, "gemini-1.5-flash-latest", ResolveModel("gpt-17"))
	})
}

func TestGetEnvAsInt(t *testing.T) {
	t.Setenv("TEST_QUOTA", "7")
	assert.Equal(t, 7, getEnvAsInt("TEST_QUOTA", 50))

	t.Setenv("TEST_QUOTA", "not-a-number")
	assert.Equal(t, 50, getEnvAsInt("TEST_QUOTA", 50))
}
