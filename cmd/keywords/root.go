package main

import (
	"context"
	"io"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dinebot/app/internal/config"
	"dinebot/app/internal/keywords"
	applog "dinebot/app/internal/log"
)

type options struct {
	workers  int
	logLevel string

	cfg    *config.Config
	logger *logrus.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "Extract nouns, adjectives and numerals from wishlist items",
		Long: `keywords reads a JSON array of strings from stdin and writes a JSON object
mapping every item to its keywords on stdout. Logs go to stderr.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			extractor, err := keywords.NewExtractor(keywords.Options{
				Workers: opts.workers,
				Logger:  opts.logger,
			})
			if err != nil {
				return eris.Wrap(err, "creating keyword extractor")
			}
			return extract(cmd.Context(), extractor, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.PersistentFlags().IntVarP(&opts.workers, "workers", "w", 0, "concurrent extraction workers (defaults to KEYWORD_WORKERS)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (defaults to LOG_LEVEL)")

	cmd.AddCommand(newServeCmd(opts))

	return cmd
}

func (o *options) load(cmd *cobra.Command) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "failure loading configuration")
	}

	level := cfg.LogLevel
	if cmd.Flags().Changed("log-level") {
		level = o.logLevel
	}

	logger, err := applog.NewLogger(level)
	if err != nil {
		return eris.Wrap(err, "failure initialising logger")
	}
	logger.SetOutput(cmd.ErrOrStderr())

	if !cmd.Flags().Changed("workers") {
		o.workers = cfg.KeywordWorkers
	}

	o.cfg = cfg
	o.logger = logger
	return nil
}

// extract decodes the items on in, extracts their keywords and writes the JSON object to out.
func extract(ctx context.Context, extractor *keywords.Extractor, in io.Reader, out io.Writer) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return eris.Wrap(err, "reading stdin")
	}

	items, err := keywords.DecodeItems(data)
	if err != nil {
		return err
	}

	extracted, err := extractor.ExtractAll(ctx, items)
	if err != nil {
		return err
	}

	encoded, err := keywords.EncodeKeywords(extracted)
	if err != nil {
		return err
	}

	if _, err := out.Write(append(encoded, '\n')); err != nil {
		return eris.Wrap(err, "writing keywords")
	}
	return nil
}

