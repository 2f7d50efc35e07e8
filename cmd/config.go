package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/teemow/gapi/internal/google"
)

// ConfigFileName is looked up inside the credentials directory when --config
// is not given.
const ConfigFileName = "config.toml"

// fileConfig is the optional TOML configuration. Every value is overridden
// by the matching environment variable and flag.
//
//	[log]
//	format = "json"
//
//	[serve]
//	transport = "streamable-http"
//	account = "work"
//	read_only = true
type fileConfig struct {
	Log   logFileConfig   `toml:"log"`
	Serve serveFileConfig `toml:"serve"`
}

type logFileConfig struct {
	Debug  *bool  `toml:"debug"`
	Format string `toml:"format"`
}

type serveFileConfig struct {
	Transport      string `toml:"transport"`
	HTTPAddr       string `toml:"http_addr"`
	ReadOnly       *bool  `toml:"read_only"`
	Account        string `toml:"account"`
	NoBrowser      *bool  `toml:"no_browser"`
	BaseURL        string `toml:"base_url"`
	TLSCertFile    string `toml:"tls_cert_file"`
	TLSKeyFile     string `toml:"tls_key_file"`
	MetricsEnabled *bool  `toml:"metrics_enabled"`
	MetricsAddr    string `toml:"metrics_addr"`
	SessionTimeout string `toml:"session_timeout"`
}

func defaultConfigPath(credentialsDir string) string {
	return filepath.Join(credentialsDir, ConfigFileName)
}

// loadFileConfig decodes path. A missing file is only an error when the
// path was given explicitly. Unknown keys are rejected so typos surface.
func loadFileConfig(path string, explicit bool) (*fileConfig, error) {
	cfg := &fileConfig{}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("invalid config file %s:\n%s", path, strict.String())
		}
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// resolveCredentialsDir applies flag > GAPI_CONFIG_DIR > user config dir.
func resolveCredentialsDir(cmd *cobra.Command, flagValue string) (string, error) {
	if cmd.Flags().Changed("credentials-dir") && flagValue != "" {
		return flagValue, nil
	}
	if dir := os.Getenv("GAPI_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	return google.DefaultDir()
}

// resolveString leaves target alone when the flag was set on the command
// line, otherwise takes the env var, then the file value.
func resolveString(cmd *cobra.Command, flag, env, fileValue string, target *string) {
	if cmd.Flags().Changed(flag) {
		return
	}
	if v := os.Getenv(env); v != "" {
		*target = v
		return
	}
	if fileValue != "" {
		*target = fileValue
	}
}

// resolveBool is resolveString for booleans. Malformed env values are
// rejected rather than silently ignored.
func resolveBool(cmd *cobra.Command, flag, env string, fileValue *bool, target *bool) error {
	if cmd.Flags().Changed(flag) {
		return nil
	}
	if v := os.Getenv(env); v != "" {
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s value %q (expected true/false)", env, v)
		}
		*target = parsed
		return nil
	}
	if fileValue != nil {
		*target = *fileValue
	}
	return nil
}
