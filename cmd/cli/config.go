package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/viper"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/pkg/client"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	formatText = "text"
	formatJSON = "json"

	// configDirEnv relocates config and credentials, mostly for scripts and tests
	configDirEnv = "KHOSHGOLPO_CONFIG_DIR"
)

type settings struct {
	BaseURL         string
	Timeout         time.Duration
	Output          string
	CacheTTL        time.Duration
	LogLevel        string
	LogFile         string
	ConfigFile      string
	CredentialsPath string
}

func configDir() (string, error) {
	if dir := os.Getenv(configDirEnv); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "khoshgolpo"), nil
}

// loadSettings reads config.toml from the config dir (or path), with
// KHOSHGOLPO_* environment overrides. A missing file is not an error.
func loadSettings(path string) (*settings, error) {
	dir, err := configDir()
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = filepath.Join(dir, "config.toml")
	} else {
		dir = filepath.Dir(path)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix("KHOSHGOLPO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("api.base_url", "KHOSHGOLPO_API_URL")

	baseURL := os.Getenv(client.BaseURLEnv)
	if baseURL == "" {
		baseURL = "http://localhost:8787"
	}
	v.SetDefault("api.base_url", baseURL)
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("output.format", formatText)
	v.SetDefault("cache.ttl", "30s")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.file", filepath.Join(dir, "khoshgolpo-cli.log"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	return &settings{
		BaseURL:         v.GetString("api.base_url"),
		Timeout:         v.GetDuration("api.timeout"),
		Output:          v.GetString("output.format"),
		CacheTTL:        v.GetDuration("cache.ttl"),
		LogLevel:        v.GetString("log.level"),
		LogFile:         expandHome(v.GetString("log.file")),
		ConfigFile:      path,
		CredentialsPath: filepath.Join(dir, "credentials.json"),
	}, nil
}

// fileStore persists the session as JSON readable only by the owner
type fileStore struct {
	path string
	mu   sync.Mutex
}

func newFileStore(path string) *fileStore {
	return &fileStore{path: path}
}

func (f *fileStore) Load() (*client.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, false
	}
	var s client.Session
	if err := json.Unmarshal(data, &s); err != nil || s.AccessToken == "" {
		return nil, false
	}
	return &s, true
}

func (f *fileStore) Save(s *client.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *fileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
