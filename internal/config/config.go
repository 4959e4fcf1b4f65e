package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	configDir  = ".catq"
	envPrefix  = "CATQ"

	KeyAPIBaseURL   = "api.base_url"
	KeyAPITimeout   = "api.timeout"
	KeyIdentityPath = "identity.path"
	KeySecretsDir   = "secrets.dir"
	KeySecretsStore = "secrets.backend"
	KeyLogLevel     = "log.level"
	KeyLogFile      = "log.file"
	KeyMetricsAddr  = "metrics.addr"

	DefaultAPIBaseURL = "http://127.0.0.1:8000/api"
	DefaultAPITimeout = 30 * time.Second
)

const (
	SecretsBackendAuto = "auto"
	SecretsBackendPass = "pass"
	SecretsBackendFile = "file"
)

var knownLevels = map[string]struct{}{
	"debug": {}, "info": {}, "warn": {}, "warning": {}, "error": {},
}

type Config struct {
	APIBaseURL   string
	APITimeout   time.Duration
	IdentityPath string
	SecretsDir   string
	// SecretsBackend is auto (pass with file fallback), pass or file.
	SecretsBackend string
	LogLevel       string
	LogFile        string
	MetricsAddr    string
}

// Load reads ~/.catq/config.toml when present, then CATQ_* environment
// overrides (CATQ_API_BASE_URL for api.base_url).
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}
	baseDir := filepath.Join(homeDir, configDir)

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(baseDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyAPIBaseURL, DefaultAPIBaseURL)
	v.SetDefault(KeyAPITimeout, DefaultAPITimeout)
	v.SetDefault(KeyIdentityPath, filepath.Join(baseDir, "identity.toml"))
	v.SetDefault(KeySecretsDir, filepath.Join(baseDir, "secrets"))
	v.SetDefault(KeySecretsStore, SecretsBackendAuto)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFile, filepath.Join(baseDir, "catq.log"))
	v.SetDefault(KeyMetricsAddr, "")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		APIBaseURL:     strings.TrimSpace(v.GetString(KeyAPIBaseURL)),
		APITimeout:     v.GetDuration(KeyAPITimeout),
		IdentityPath:   expandHome(v.GetString(KeyIdentityPath), homeDir),
		SecretsDir:     expandHome(v.GetString(KeySecretsDir), homeDir),
		SecretsBackend: strings.ToLower(strings.TrimSpace(v.GetString(KeySecretsStore))),
		LogLevel:       strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		LogFile:        expandHome(v.GetString(KeyLogFile), homeDir),
		MetricsAddr:    strings.TrimSpace(v.GetString(KeyMetricsAddr)),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	parsed, err := url.Parse(c.APIBaseURL)
	switch {
	case c.APIBaseURL == "":
		errs = append(errs, errors.New("api.base_url is required"))
	case err != nil:
		errs = append(errs, fmt.Errorf("parse api.base_url: %w", err))
	case parsed.Scheme != "http" && parsed.Scheme != "https":
		errs = append(errs, errors.New("api.base_url must use http or https"))
	case parsed.Host == "":
		errs = append(errs, errors.New("api.base_url host is required"))
	}

	if c.APITimeout <= 0 {
		errs = append(errs, fmt.Errorf("api.timeout must be positive, got %s", c.APITimeout))
	}
	if strings.TrimSpace(c.IdentityPath) == "" {
		errs = append(errs, errors.New("identity.path is required"))
	}
	switch c.SecretsBackend {
	case SecretsBackendAuto, SecretsBackendPass, SecretsBackendFile:
	default:
		errs = append(errs, fmt.Errorf("secrets.backend %q is not one of auto, pass, file", c.SecretsBackend))
	}
	if _, ok := knownLevels[c.LogLevel]; !ok {
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.LogLevel))
	}

	return errors.Join(errs...)
}

func expandHome(path string, homeDir string) string {
	path = strings.TrimSpace(path)
	if path == "~" {
		return homeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
