package loom

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type testConfig struct {
	Addresses            []string      `mapstructure:"addresses"`
	MaxListenConnections int           `mapstructure:"max_listen_connections"`
	ClientRequestTimeout time.Duration `mapstructure:"client_request_timeout"`
}

func TestLoadConfigJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	assert.NoError(t, os.WriteFile(path, []byte(`{"addresses": [":8080"], "max_listen_connections": 10}`), 0o644))

	var c testConfig
	assert.NoError(t, LoadConfig(path, &c))
	assert.Equal(t, []string{":8080"}, c.Addresses)
	assert.Equal(t, 10, c.MaxListenConnections)
}

func TestLoadConfigTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.toml")
	assert.NoError(t, os.WriteFile(path, []byte("addresses = [\":9090\"]\nmax_listen_connections = 5\n"), 0o644))

	var c testConfig
	assert.NoError(t, LoadConfig(path, &c))
	assert.Equal(t, []string{":9090"}, c.Addresses)
	assert.Equal(t, 5, c.MaxListenConnections)
}

func TestLoadConfigYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("addresses:\n  - \":7070\"\nmax_listen_connections: 3\n"), 0o644))

	var c testConfig
	assert.NoError(t, LoadConfig(path, &c))
	assert.Equal(t, []string{":7070"}, c.Addresses)
	assert.Equal(t, 3, c.MaxListenConnections)
}

func TestLoadConfigINIFlattensDefaultSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.ini")
	assert.NoError(t, os.WriteFile(path, []byte("max_listen_connections = 7\n"), 0o644))

	var c testConfig
	assert.NoError(t, LoadConfig(path, &c))
	assert.Equal(t, 7, c.MaxListenConnections)
}

func TestLoadConfigINISectionsBecomeNestedMaps(t *testing.T) {
	m, err := loadINI([]byte("[server]\nmax_listen_connections = 9\n"))
	assert.NoError(t, err)
	sec, ok := m["server"].(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "9", sec["max_listen_connections"])
}

func TestLoadConfigUnsupportedExtensionErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.xyz")
	assert.NoError(t, os.WriteFile(path, []byte("irrelevant"), 0o644))

	var c testConfig
	err := LoadConfig(path, &c)
	assert.Error(t, err)
	k, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindBadRequest, k)
}

func TestLoadConfigMissingFileErrors(t *testing.T) {
	var c testConfig
	err := LoadConfig("/nonexistent/path/cfg.json", &c)
	assert.Error(t, err)
}

func TestServerBuildLoadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	assert.NoError(t, os.WriteFile(path, []byte(`{"addresses": [":6060"]}`), 0o644))

	s := NewServer()
	s.ConfigFile = path
	assert.NoError(t, s.Build())
	assert.Equal(t, []Address{{Addr: ":6060"}}, s.Addresses)
}
