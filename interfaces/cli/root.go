package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"brain2-extractor/application/ports"
	"brain2-extractor/infrastructure/config"
)

// StreamOpener opens an upstream generation stream for a prompt
type StreamOpener interface {
	Open(ctx context.Context, prompt string) (ports.StreamSource, error)
}

// Options holds the flags of the extract command.
type Options struct {
	File       string
	Prompt     string
	PolicyFile string
	SessionID  string
	ChunkSize  int
	Buffer     int
	Summary    bool
}

// NewRootCommand creates the extract command. A nil opener disables --prompt.
func NewRootCommand(cfg *config.Config, opener StreamOpener, logger *zap.Logger) *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:   "brain2-extract",
		Short: "Extract a knowledge graph from annotated text",
		Long: `Extract nodes and edges from text written in the extraction micro-syntax.

Input is read from --file (or stdin when no file is given) and fed to the
engine in chunks of --chunk-size bytes, the way a stream would arrive.
With --prompt the text is generated by the configured model instead.

Every event is written to stdout as one JSON object per line.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, cfg, opener, logger)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "input file (default stdin, - also reads stdin)")
	cmd.Flags().StringVarP(&opts.Prompt, "prompt", "p", "", "generate the input from this prompt")
	cmd.Flags().StringVar(&opts.PolicyFile, "policy", cfg.PolicyFile, "YAML extraction policy file")
	cmd.Flags().StringVar(&opts.SessionID, "session-id", "", "session identifier (default random)")
	cmd.Flags().IntVar(&opts.ChunkSize, "chunk-size", cfg.DefaultChunkSize, "bytes per fragment when reading text")
	cmd.Flags().IntVar(&opts.Buffer, "buffer", cfg.SubscriberBuffer, "event buffer size")
	cmd.Flags().BoolVar(&opts.Summary, "summary", false, "write the session summary to stderr")

	cmd.MarkFlagsMutuallyExclusive("file", "prompt")

	return cmd
}
