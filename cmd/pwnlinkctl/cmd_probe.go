package main

import (
	"fmt"
	"time"

	"github.com/SolidHal/pwnagotchi-flipper/internal/protocol/session"
	"github.com/SolidHal/pwnagotchi-flipper/internal/transport"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// newProbeCmd creates the "pwnlinkctl probe" subcommand.
func newProbeCmd(root *rootOptions) *cobra.Command {
	overrides := &overrideFlags{}
	var attempts int
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Handshake once and report whether the peripheral answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root.configPath)
			if err != nil {
				return err
			}
			overrides.apply(cmd.Flags(), &cfg)
			if err := cfg.Transport.Validate(); err != nil {
				return err
			}
			opener, err := transport.NewSerialOpener(cfg.Transport)
			if err != nil {
				return err
			}
			if err := probe(opener, attempts, cfg.Supervisor.Session.HandshakeInterval); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "peripheral present on %s\n", cfg.Transport.Path)
			return nil
		},
	}
	overrides.register(cmd.Flags())
	cmd.Flags().IntVar(&attempts, "attempts", 1, "handshake attempts before giving up")
	return cmd
}

// probe opens the port and handshakes up to attempts times.
func probe(opener transport.Opener, attempts int, interval time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	port, err := opener.Open()
	if err != nil {
		return err
	}
	link := session.NewLink(port)
	defer link.Close()

	for attempt := 1; ; attempt++ {
		err = link.Handshake()
		if err == nil {
			return nil
		}
		log.Debug().Err(err).Int("attempt", attempt).Msg("pwnlinkctl.probe handshake failed")
		if attempt >= attempts {
			return fmt.Errorf("no peripheral answered after %d attempt(s): %w", attempts, err)
		}
		time.Sleep(interval)
	}
}
