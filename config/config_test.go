package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NOTIFY_MODE", "")
	t.Setenv("PUBLIC_URL", "https://centre.example.org/")
	t.Setenv("ADMIN_NOTIFICATION_EMAILS", " accueil@example.org, ,direction@example.org ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sync", cfg.Notifications.Mode)
	assert.False(t, cfg.Notifications.QueueEnabled())
	assert.Equal(t, 12, cfg.Notifications.SendTimeoutSec)
	assert.Equal(t, "https://centre.example.org", cfg.App.PublicURL)
	assert.Equal(t, []string{"accueil@example.org", "direction@example.org"}, cfg.App.AdminEmails)
	assert.Equal(t, "/inscription/confirmation", cfg.App.ConfirmRedirectPath)
}

func TestLoadQueueMode(t *testing.T) {
	t.Setenv("NOTIFY_MODE", "Queue")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Notifications.QueueEnabled())
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Setenv("NOTIFY_MODE", "carrier-pigeon")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("NOTIFY_MODE", "sync")
	t.Setenv("EMAIL_SEND_TIMEOUT_SEC", "-1")
	_, err = Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "centre", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/centre?sslmode=disable", db.DSN())

	db.URL = "postgres://elsewhere/centre"
	assert.Equal(t, "postgres://elsewhere/centre", db.DSN())
}
