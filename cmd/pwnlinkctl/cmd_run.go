package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/SolidHal/pwnagotchi-flipper/internal/server"
	"github.com/SolidHal/pwnagotchi-flipper/internal/supervisor"
	"github.com/SolidHal/pwnagotchi-flipper/internal/transport"
	"github.com/SolidHal/pwnagotchi-flipper/internal/ui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// newRunCmd creates the "pwnlinkctl run" subcommand.
func newRunCmd(root *rootOptions) *cobra.Command {
	overrides := &overrideFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Keep the peripheral connected and mirror UI snapshots",
		Long: "Handshakes with the peripheral, keeps the link inside its error budget\n" +
			"and sends every UI field that changes. Snapshots come from the\n" +
			"snapshot file and from POST /ui on the status server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root.configPath)
			if err != nil {
				return err
			}
			overrides.apply(cmd.Flags(), &cfg)
			if err := cfg.validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	overrides.register(cmd.Flags())
	return cmd
}

func serve(ctx context.Context, cfg appConfig) error {
	opener, err := transport.NewSerialOpener(cfg.Transport)
	if err != nil {
		return err
	}
	mailbox := ui.NewMailbox()
	sup, err := supervisor.New(cfg.Supervisor, opener, mailbox)
	if err != nil {
		return err
	}

	var source *ui.FileSource
	if cfg.SnapshotFile != "" {
		source, err = ui.NewFileSource(cfg.SnapshotFile, mailbox)
		if err != nil {
			return err
		}
	}
	var status *server.Server
	if cfg.Status.Addr != "" {
		status, err = server.New(cfg.Status, sup, mailbox)
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	linkErr := make(chan error, 1)
	sourceErr := make(chan error, 1)
	statusErr := make(chan error, 1)
	go func() { linkErr <- sup.Run(ctx) }()
	if source != nil {
		go func() { sourceErr <- source.Run(ctx) }()
	}
	if status != nil {
		go func() { statusErr <- status.Run(ctx) }()
	}

	log.Info().
		Str("port", cfg.Transport.Path).
		Int("baud", cfg.Transport.BaudRate).
		Str("snapshot_file", cfg.SnapshotFile).
		Str("status_addr", cfg.Status.Addr).
		Msg("pwnlinkctl.run started")

	var sourceCh, statusCh <-chan error
	if source != nil {
		sourceCh = sourceErr
	}
	if status != nil {
		statusCh = statusErr
	}
	runErr := awaitServices(ctx, cancel, linkErr, sourceCh, statusCh)
	if runErr != nil {
		log.Error().Err(runErr).Msg("pwnlinkctl.run stopped")
		return runErr
	}
	log.Info().Msg("pwnlinkctl.run shutdown")
	return nil
}

// awaitServices blocks until ctx ends or a service fails, then cancels the
// rest and waits for the link and status server. A nil source or status
// channel means that service is not running. A snapshot source that stops
// without error leaves the link running on the last published snapshot.
func awaitServices(ctx context.Context, cancel context.CancelFunc, linkErr, sourceErr, statusErr <-chan error) error {
	var runErr error
	linkDone, statusDone := false, statusErr == nil
wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case runErr = <-linkErr:
			linkDone = true
			break wait
		case err := <-sourceErr:
			if err != nil {
				runErr = err
				break wait
			}
			log.Warn().Msg("pwnlinkctl.run snapshot source stopped, link keeps last snapshot")
			sourceErr = nil
		case runErr = <-statusErr:
			statusDone = true
			break wait
		}
	}
	cancel()
	if !linkDone {
		if err := <-linkErr; err != nil && runErr == nil {
			runErr = err
		}
	}
	if !statusDone {
		if err := <-statusErr; err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}
