package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/axondata/go-iocfixture"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the IOC and keep it running until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runRun,
}

var (
	runTimeout    time.Duration
	transcriptDir string
	watchSources  bool
)

func init() {
	runCmd.Flags().DurationVar(&runTimeout, "timeout", iocfixture.DefaultReadyTimeout, "How long to wait for IOC initialization")
	runCmd.Flags().StringVar(&transcriptDir, "transcript-dir", "", "Write the IOC output to DIR/ioc.log on exit")
	runCmd.Flags().BoolVar(&watchSources, "watch", false, "Warn when a template changes while the IOC runs")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ts, err := templates()
	if err != nil {
		return err
	}

	log := logger()
	launcher, err := iocfixture.NewLauncher(
		iocfixture.WithReadyTimeout(runTimeout),
		iocfixture.WithLogger(log),
	)
	if err != nil {
		return err
	}

	opts := []iocfixture.FixtureOption{
		iocfixture.WithLauncher(launcher),
		iocfixture.WithFixtureLogger(log),
	}
	if transcriptDir != "" {
		opts = append(opts, iocfixture.WithTranscriptDir(transcriptDir))
	}
	if watchSources {
		opts = append(opts, iocfixture.WithTemplateWatch())
	}
	fixture := iocfixture.NewProcessFixture("", ts, opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	proc, err := fixture.Setup(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "IOC ready (pid %d), press Ctrl-C to stop\n", proc.Pid())

	select {
	case <-ctx.Done():
	case <-proc.Done():
		log.Warn().Int("exit_code", proc.ExitCode()).Msg("IOC exited on its own")
	}

	if err := fixture.Teardown(); err != nil {
		return err
	}
	if stale := fixture.StaleTemplates(); len(stale) > 0 {
		log.Warn().Strs("templates", stale).Msg("templates changed while the IOC was running")
	}
	return nil
}
