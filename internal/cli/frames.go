package cli

import (
	"github.com/spf13/cobra"
)

// FramesCmd creates the frames command.
func FramesCmd(env *Env) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "frames <video>...",
		Short: "Extract key frames without transcribing",
		Long: `Sample, deduplicate and read the key frames of a recording without touching
the audio. No API key is needed unless --tags is set.

Each recording gets its own folder under --output holding result.json and frames/.`,
		Example: `  meetsync frames weekly-sync.mp4
  meetsync frames screencast.mkv --mode demo --no-ocr`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), env, cmd.Flags(), &flags, args, false)
		},
	}

	bindRunFlags(cmd.Flags(), &flags)
	_ = cmd.Flags().MarkHidden("no-frames")
	_ = cmd.Flags().MarkHidden("parallel")
	return cmd
}
