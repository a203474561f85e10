package tls

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hybrid-auth-service/internal/config"
)

func TestGenerateCert_ReusesValidCertificate(t *testing.T) {
	dir := t.TempDir()
	gen := NewDevCertGenerator(dir)
	hosts := []string{"pos.local", "127.0.0.1"}

	first, err := gen.GenerateCert(hosts)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(first.Certificate[0])
	require.NoError(t, err)
	assert.Contains(t, leaf.DNSNames, "pos.local")
	require.Len(t, leaf.IPAddresses, 1)

	info, err := os.Stat(filepath.Join(dir, devKeyFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := gen.GenerateCert(hosts)
	require.NoError(t, err)
	assert.Equal(t, first.Certificate[0], second.Certificate[0])
}

func TestGenerateCert_RenewsNearExpiry(t *testing.T) {
	dir := t.TempDir()
	gen := NewDevCertGenerator(dir)

	first, err := gen.GenerateCert([]string{"localhost"})
	require.NoError(t, err)

	gen.now = func() time.Time { return time.Now().Add(devCertValidity - time.Hour) }
	renewed, err := gen.GenerateCert([]string{"localhost"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Certificate[0], renewed.Certificate[0])
}

func TestGenerateCert_RenewsForNewHost(t *testing.T) {
	gen := NewDevCertGenerator(t.TempDir())

	first, err := gen.GenerateCert([]string{"localhost"})
	require.NoError(t, err)
	other, err := gen.GenerateCert([]string{"kiosk.local"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Certificate[0], other.Certificate[0])
}

func TestGetCertificate_DevelopmentFallback(t *testing.T) {
	m := NewTLSManager(config.ServerConfig{
		EnableTLS:   true,
		Domain:      "localhost",
		AutoCertDir: t.TempDir(),
	}, "development")

	a, err := m.GetCertificate(&tls.ClientHelloInfo{ServerName: "localhost"})
	require.NoError(t, err)
	b, err := m.GetCertificate(&tls.ClientHelloInfo{ServerName: "localhost"})
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestGetCertificate_ProductionNeedsRealSource(t *testing.T) {
	m := NewTLSManager(config.ServerConfig{
		EnableTLS:   true,
		Domain:      "example.com",
		AutoCertDir: t.TempDir(),
	}, "production")

	_, err := m.GetCertificate(&tls.ClientHelloInfo{ServerName: "example.com"})
	assert.ErrorIs(t, err, errNoCertificate)
}

func TestGetTLSConfig(t *testing.T) {
	m := NewTLSManager(config.ServerConfig{}, "development")
	cfg := m.GetTLSConfig()

	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.Equal(t, []string{"h2", "http/1.1"}, cfg.NextProtos)
	assert.Nil(t, m.GetAutocertManager())
}
