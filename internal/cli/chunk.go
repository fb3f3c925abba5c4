package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alnah/go-meetsync/internal/config"
	"github.com/alnah/go-meetsync/internal/ffmpeg"
	"github.com/alnah/go-meetsync/internal/format"
)

// ChunkCmd creates the chunk command, a dry run of audio segmentation.
func ChunkCmd(env *Env) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "chunk <video>",
		Short: "Show how a recording's audio would be split for transcription",
		Long: `Extract the audio of a recording and split it at silences exactly as
'process' would, then print the segments without transcribing them.

Useful to tune audio.silence_db, audio.min_silence and audio.ceiling_bytes.`,
		Example: `  meetsync chunk weekly-sync.mp4
  meetsync chunk long-call.mkv -c ./settings.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChunk(cmd.Context(), env, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Settings file (default: $XDG_CONFIG_HOME/meetsync/settings.yaml)")
	return cmd
}

func runChunk(ctx context.Context, env *Env, configPath, videoPath string) error {
	if err := checkRecording(videoPath); err != nil {
		return err
	}
	settings, err := env.SettingsLoader.Load(config.ExpandPath(configPath), env.Getenv)
	if err != nil {
		return err
	}
	log, err := env.logger()
	if err != nil {
		return err
	}
	ffmpegPath, err := env.ToolResolver.Lookup(ctx, ffmpeg.FFmpeg)
	if err != nil {
		return err
	}

	req := ServiceRequest{Settings: settings, FFmpegPath: ffmpegPath, Logger: log}
	extractor, err := env.Services.NewExtractor(req)
	if err != nil {
		return err
	}
	chunker, err := env.Services.NewChunker(req)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "meetsync-chunk-")
	if err != nil {
		return fmt.Errorf("cannot create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	audioPath := filepath.Join(dir, "audio.mp3")
	if err := extractor.Extract(ctx, videoPath, audioPath); err != nil {
		return err
	}
	chunking, err := chunker.Chunk(ctx, audioPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := chunking.Cleanup(); err != nil {
			log.WithError(err).Warn("failed to remove segments")
		}
	}()

	fmt.Fprintf(env.Stdout, "%d segments, %s total\n", len(chunking.Segments), format.Duration(chunking.Duration))
	for _, seg := range chunking.Segments {
		fmt.Fprintf(env.Stdout, "%3d  %s -> %s  lead %-6s %s\n",
			seg.Index,
			format.Timestamp(seg.Start, '.'),
			format.Timestamp(seg.End, '.'),
			format.Duration(seg.Lead),
			format.Size(seg.Size),
		)
	}
	for _, w := range chunking.Warnings {
		fmt.Fprintf(env.Stderr, "warning [%s] %s\n", w.Kind, w.Message)
	}
	return nil
}
