package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Publish     PublishConfig     `toml:"publish"`
	Calendar    CalendarConfig    `toml:"calendar"`
	Playback    PlaybackConfig    `toml:"playback"`
}

// CredentialsConfig contains provider-specific OAuth credentials.
type CredentialsConfig struct {
	Microsoft ProviderConfig `toml:"microsoft"`
	Spotify   ProviderConfig `toml:"spotify"`
}

// ProviderConfig contains the OAuth client credentials for one provider.
type ProviderConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// Valid reports whether both credential fields are set.
func (p ProviderConfig) Valid() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// DatabaseConfig contains the token store location.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// ServerConfig contains HTTP front door settings for both bridges.
type ServerConfig struct {
	Host         string `toml:"host"`
	CalendarPort int    `toml:"calendar_port"`
	PlaybackPort int    `toml:"playback_port"`
}

// RedirectURI builds the OAuth callback URI for the given bridge port.
func (s ServerConfig) RedirectURI(port int) string {
	return fmt.Sprintf("http://%s:%d/callback", s.Host, port)
}

// HomeURL builds the base URL shown in login hints for the given bridge port.
func (s ServerConfig) HomeURL(port int) string {
	return fmt.Sprintf("http://%s:%d", s.Host, port)
}

// PublishConfig selects the render mode and sink locations.
type PublishConfig struct {
	Mode         string `toml:"mode"`
	CalendarSink string `toml:"calendar_sink"`
	PlaybackSink string `toml:"playback_sink"`
	IconDir      string `toml:"icon_dir"`
	NotifyURL    string `toml:"notify_url"`
}

// CalendarConfig contains the calendar bridge's polling and filtering rules.
type CalendarConfig struct {
	IntervalSeconds int      `toml:"interval_seconds"`
	GraceMinutes    int      `toml:"grace_minutes"`
	LookaheadDays   int      `toml:"lookahead_days"`
	DenyList        []string `toml:"deny_list"`
	Timezone        string   `toml:"timezone"`
}

// PlaybackConfig contains the playback bridge's polling and display rules.
type PlaybackConfig struct {
	IntervalSeconds int `toml:"interval_seconds"`
	DisplayWidth    int `toml:"display_width"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
