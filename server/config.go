// ABOUTME: Server configuration from SNAPBOARD_* environment variables, an optional .snapboard.yaml and CLI flags.
// ABOUTME: Enforces the security constraint that remote access requires an auth token.
package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var (
	ErrRemoteWithoutToken = errors.New(
		"SNAPBOARD_ALLOW_REMOTE is true but SNAPBOARD_AUTH_TOKEN is not set; refusing to start without authentication",
	)
	ErrNonLoopbackBind = errors.New(
		"SNAPBOARD_BIND is a non-loopback address but SNAPBOARD_ALLOW_REMOTE is not true; set SNAPBOARD_ALLOW_REMOTE=true and SNAPBOARD_AUTH_TOKEN to allow remote access",
	)
)

// Config keys, also the lower-case suffix of each SNAPBOARD_* variable.
const (
	KeyHome         = "home"
	KeyBind         = "bind"
	KeyAllowRemote  = "allow_remote"
	KeyAuthToken    = "auth_token"
	KeyEditProvider = "edit_provider"
	KeyEditModel    = "edit_model"
	KeyEditRetries  = "edit_retries"
	KeyCatalog      = "catalog"
	KeyCameraDir    = "camera_dir"
	KeyBlobDir      = "blob_dir"
	KeyJournal      = "journal"
	KeyGallery      = "gallery"
	KeyAdvertise    = "advertise"
	KeyLogLevel     = "log_level"
)

// Config holds server configuration.
type Config struct {
	Home         string // data directory (SNAPBOARD_HOME, default ~/.snapboard)
	Bind         string // listen address (SNAPBOARD_BIND, default 127.0.0.1:7780)
	AllowRemote  bool   // allow non-loopback binds (SNAPBOARD_ALLOW_REMOTE)
	AuthToken    string // bearer token for the API (SNAPBOARD_AUTH_TOKEN)
	EditProvider string // gemini or openai; empty detects from API keys
	EditModel    string
	EditRetries  int    // extra attempts after a transient edit failure (default 0)
	Catalog      string // catalog override file; empty uses the built-in one
	CameraDir    string // drop folder for a tethered camera; empty disables server-side capture
	BlobDir      string // image store (default $HOME/blobs)
	Journal      string // board journal (default $HOME/board.jsonl)
	Gallery      string // gallery database (default $HOME/gallery.db)
	Advertise    bool   // announce the board on the LAN over mDNS
	LogLevel     string
}

// NewViper returns a viper instance reading SNAPBOARD_* variables and an
// optional .snapboard.yaml from the working directory or configDir.
func NewViper(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("SNAPBOARD")
	v.AutomaticEnv()
	v.SetDefault(KeyBind, "127.0.0.1:7780")
	v.SetDefault(KeyLogLevel, "info")
	v.SetConfigName(".snapboard")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return v, nil
}

// LoadDotEnv loads a .env file without overriding variables already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ConfigFrom resolves and validates configuration from v.
func ConfigFrom(v *viper.Viper) (*Config, error) {
	home, err := homedir.Expand(strings.TrimSpace(v.GetString(KeyHome)))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", KeyHome, err)
	}
	if home == "" {
		homeDir, err := homedir.Dir()
		if err != nil {
			homeDir = os.TempDir()
		}
		home = filepath.Join(homeDir, ".snapboard")
	}
	cameraDir, err := homedir.Expand(v.GetString(KeyCameraDir))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", KeyCameraDir, err)
	}

	retries := v.GetInt(KeyEditRetries)
	if retries < 0 {
		return nil, fmt.Errorf("%s must not be negative, got %d", KeyEditRetries, retries)
	}

	cfg := &Config{
		Home:         home,
		Bind:         v.GetString(KeyBind),
		AllowRemote:  v.GetBool(KeyAllowRemote),
		AuthToken:    strings.TrimSpace(v.GetString(KeyAuthToken)),
		EditProvider: v.GetString(KeyEditProvider),
		EditModel:    v.GetString(KeyEditModel),
		EditRetries:  retries,
		Catalog:      v.GetString(KeyCatalog),
		CameraDir:    cameraDir,
		BlobDir:      orJoin(v.GetString(KeyBlobDir), home, "blobs"),
		Journal:      orJoin(v.GetString(KeyJournal), home, "board.jsonl"),
		Gallery:      orJoin(v.GetString(KeyGallery), home, "gallery.db"),
		Advertise:    v.GetBool(KeyAdvertise),
		LogLevel:     v.GetString(KeyLogLevel),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate applies the remote-access rules.
func (c *Config) Validate() error {
	if c.AllowRemote && c.AuthToken == "" {
		return ErrRemoteWithoutToken
	}
	if c.AllowRemote {
		return nil
	}
	host, _, err := net.SplitHostPort(c.Bind)
	if err != nil {
		return fmt.Errorf("invalid SNAPBOARD_BIND %q: %w", c.Bind, err)
	}
	ip := net.ParseIP(host)
	switch {
	case ip != nil && ip.IsLoopback():
		return nil
	case ip == nil && host == "localhost":
		return nil
	default:
		// Includes ":7780", which listens on every interface.
		return fmt.Errorf("%w: SNAPBOARD_BIND=%s", ErrNonLoopbackBind, c.Bind)
	}
}

func orJoin(v, home, name string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return filepath.Join(home, name)
}
