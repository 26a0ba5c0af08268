package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medashooter/gateway/internal/config"
)

func TestKeySourcePrefersFilesystemPathOverBase64(t *testing.T) {
	got := keySource(config.RSAKeyConfig{Path: "/etc/gateway/score.pem", Base64: "ignored"})
	assert.Equal(t, "/etc/gateway/score.pem", got)
}

func TestKeySourceFallsBackToBase64WhenPathEmpty(t *testing.T) {
	got := keySource(config.RSAKeyConfig{Base64: "cGVt"})
	assert.Equal(t, "cGVt", got)
}

func TestKeySourceEmptyWhenNeitherSet(t *testing.T) {
	assert.Equal(t, "", keySource(config.RSAKeyConfig{}))
}
