package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/gapi/internal/google"
	"github.com/teemow/gapi/internal/logging"
)

// version will be set by main
var version = "dev"

// SetVersion sets the version reported by the CLI
func SetVersion(v string) {
	version = v
}

// rootOptions are the persistent flags shared by every subcommand, resolved
// once in PersistentPreRunE.
type rootOptions struct {
	credentialsDir string
	configFile     string
	debug          bool
	logFormat      string

	file   *fileConfig
	logger *slog.Logger
}

func (o *rootOptions) store() *google.Store {
	return google.NewStore(o.credentialsDir)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "gapi",
		Short: "Google Calendar and Tasks for AI assistants",
		Long: `gapi exposes Google Calendar and Google Tasks as Model Context Protocol
(MCP) tools.

Credentials are kept per account in the credentials directory:
  client_secret.json         OAuth client downloaded from the Google Cloud console
  credentials.json           the "default" account
  credentials-<account>.json any other account

Run 'gapi auth login' once, then point your MCP client at 'gapi serve'.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.complete(cmd)
		},
	}
	rootCmd.SetVersionTemplate(`{{printf "gapi version %s\n" .Version}}`)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.credentialsDir, "credentials-dir", "", "Directory holding client_secret.json and account credentials. Can also use GAPI_CONFIG_DIR env var. (default: $XDG_CONFIG_HOME/gapi)")
	flags.StringVar(&opts.configFile, "config", "", "Path to a TOML config file (default: <credentials-dir>/config.toml)")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging. Can also use GAPI_DEBUG env var.")
	flags.StringVar(&opts.logFormat, "log-format", logging.FormatText, "Log format: text or json. Can also use GAPI_LOG_FORMAT env var.")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newAuthCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())

	return rootCmd
}

// complete resolves the credentials directory, loads the config file and
// installs the process logger.
func (o *rootOptions) complete(cmd *cobra.Command) error {
	dir, err := resolveCredentialsDir(cmd, o.credentialsDir)
	if err != nil {
		return err
	}
	o.credentialsDir = dir

	path, explicit := o.configFile, cmd.Flags().Changed("config")
	if !explicit {
		path = defaultConfigPath(dir)
	}
	file, err := loadFileConfig(path, explicit)
	if err != nil {
		return err
	}
	o.file = file

	if err := resolveBool(cmd, "debug", "GAPI_DEBUG", file.Log.Debug, &o.debug); err != nil {
		return err
	}
	resolveString(cmd, "log-format", "GAPI_LOG_FORMAT", file.Log.Format, &o.logFormat)

	logger, err := logging.Setup(logging.Options{
		Debug:  o.debug,
		Format: o.logFormat,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	o.logger = logger
	return nil
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
