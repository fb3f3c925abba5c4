package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alnah/go-meetsync/internal/config"
)

// ConfigCmd creates the config command with show and path subcommands.
func ConfigCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect settings",
		Long: `Inspect meetsync settings.

Settings are resolved from built-in defaults, then the settings file
($XDG_CONFIG_HOME/meetsync/settings.yaml or --config), then environment variables:

  MEETSYNC_OUTPUT_DIR            Output directory
  MEETSYNC_TRANSCRIPTION_MODEL   Transcription model
  MEETSYNC_TRANSCRIPTION_BASE_URL OpenAI-compatible endpoint
  MEETSYNC_REDIS_URL             Transcript cache (redis://host:port/db)
  MEETSYNC_FRAMES_MODE           slides, demo or hybrid
  MEETSYNC_FRAMES_ENABLED        true or false`,
		Example: `  meetsync config show
  meetsync config show -c ./settings.yaml > my-settings.yaml
  meetsync config path`,
	}

	cmd.AddCommand(configShowCmd(env))
	cmd.AddCommand(configPathCmd(env))
	return cmd
}

func configShowCmd(env *Env) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved settings as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := env.SettingsLoader.Load(config.ExpandPath(configPath), env.Getenv)
			if err != nil {
				return err
			}
			return config.Encode(env.Stdout, s)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Settings file (default: $XDG_CONFIG_HOME/meetsync/settings.yaml)")
	return cmd
}

func configPathCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the default settings file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.Path()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(env.Stdout, p)
			return err
		},
	}
}
