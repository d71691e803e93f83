package main

import (
	"github.com/nats-io/nats.go"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"dinebot/app/internal/keywords"
)

func newServeCmd(opts *options) *cobra.Command {
	var (
		natsURL string
		subject string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer keyword extraction requests over NATS",
		Long: `serve subscribes to a NATS subject and answers every request carrying a JSON
array of items with the same JSON object the one-shot mode prints.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("nats-url") {
				natsURL = opts.cfg.NATSURL
			}
			if !cmd.Flags().Changed("subject") {
				subject = opts.cfg.NATSSubject
			}

			conn, err := nats.Connect(natsURL, nats.Name("dinebot-keywords"))
			if err != nil {
				return eris.Wrapf(err, "connecting to nats at %s", natsURL)
			}
			defer conn.Close()

			extractor, err := keywords.NewExtractor(keywords.Options{
				Workers: opts.workers,
				Logger:  opts.logger,
			})
			if err != nil {
				return eris.Wrap(err, "creating keyword extractor")
			}

			responder, err := keywords.NewResponder(keywords.ResponderOptions{
				Conn:      conn,
				Extractor: extractor,
				Subject:   subject,
				Logger:    opts.logger,
			})
			if err != nil {
				return eris.Wrap(err, "creating keyword responder")
			}

			if err := responder.Serve(cmd.Context()); err != nil {
				return err
			}

			opts.logger.Info("keyword responder stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server URL (defaults to NATS_URL)")
	cmd.Flags().StringVar(&subject, "subject", "", "request subject (defaults to NATS_SUBJECT)")

	return cmd
}
