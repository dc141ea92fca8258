package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hochfrequenz/swebatch/internal/agentproc"
	"github.com/hochfrequenz/swebatch/internal/batch"
	"github.com/hochfrequenz/swebatch/internal/config"
	"github.com/hochfrequenz/swebatch/internal/domain"
	"github.com/hochfrequenz/swebatch/internal/issues"
	"github.com/hochfrequenz/swebatch/internal/notify"
	"github.com/hochfrequenz/swebatch/internal/observer"
	"github.com/hochfrequenz/swebatch/internal/prgate"
	"github.com/hochfrequenz/swebatch/internal/runner"
	"github.com/hochfrequenz/swebatch/internal/runstore"
	"github.com/hochfrequenz/swebatch/internal/swenv"
	"github.com/hochfrequenz/swebatch/internal/trajstore"
	"github.com/hochfrequenz/swebatch/tui"
	"github.com/spf13/cobra"
)

var (
	runFilter     string
	runNoSkip     bool
	runStrict     bool
	runOpenPR     bool
	runSuffix     string
	runCron       string
	listInstances string
)

func init() {
	// run command
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Process the configured dataset",
		RunE:  runBatch,
	}
	runCmd.Flags().StringVar(&runFilter, "filter", "", "instance id filter (full-match regex)")
	runCmd.Flags().BoolVar(&runNoSkip, "no-skip-existing", false, "reprocess instances with complete trajectories")
	runCmd.Flags().BoolVar(&runStrict, "strict", false, "abort the batch on the first instance failure")
	runCmd.Flags().BoolVar(&runOpenPR, "open-pr", false, "open a pull request for each eligible submission")
	runCmd.Flags().StringVar(&runSuffix, "suffix", "", "extra run name component")
	runCmd.Flags().StringVar(&runCron, "cron", "", "re-run the batch on this cron schedule instead of once")
	rootCmd.AddCommand(runCmd)

	// status command
	statusCmd := &cobra.Command{
		Use:   "status [RUN_NAME]",
		Short: "Show the latest run for the current configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runStatus,
	}
	rootCmd.AddCommand(statusCmd)

	// list command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		RunE:  runList,
	}
	listCmd.Flags().StringVar(&listInstances, "instances", "", "show instances of the given run id instead")
	rootCmd.AddCommand(listCmd)

	// watch command
	watchCmd := &cobra.Command{
		Use:   "watch RUN_DIR",
		Short: "Stream trajectory events for a run directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch,
	}
	rootCmd.AddCommand(watchCmd)

	// tui command
	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch the run dashboard",
		RunE:  runTUI,
	}
	rootCmd.AddCommand(tuiCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFilter != "" {
		cfg.Run.InstanceFilter = runFilter
	}
	if runNoSkip {
		cfg.Run.SkipExisting = false
	}
	if runStrict {
		cfg.Run.Strict = true
	}
	if runOpenPR {
		cfg.Actions.OpenPR = true
	}
	if runSuffix != "" {
		cfg.Run.Suffix = runSuffix
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runCron == "" {
		return executeBatch(ctx, cfg, log)
	}

	sched, err := batch.Parse(runCron)
	if err != nil {
		return fmt.Errorf("invalid --cron schedule: %w", err)
	}
	log.Info("running on schedule", "cron", sched.String())
	return sched.Run(ctx, log, func(ctx context.Context) error {
		return executeBatch(ctx, cfg, log)
	})
}

// executeBatch wires one full pass over the dataset and reports the result.
func executeBatch(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	env, err := swenv.New(cfg.Environment, log)
	if err != nil {
		return fmt.Errorf("setting up environment: %w", err)
	}

	agent, err := agentproc.New(cfg.Agent, log)
	if err != nil {
		return err
	}

	store, err := trajstore.New(cfg.RunDir(), log)
	if err != nil {
		return err
	}

	index, err := runstore.New(cfg.Run.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening run index: %w", err)
	}
	defer index.Close()

	runID, err := index.BeginRun(cfg.RunName(), cfg.RunDir())
	if err != nil {
		return err
	}

	opts := runner.Options{Index: index, RunID: runID}
	if cfg.Actions.OpenPR {
		lookup := issues.NewGHLookup(cfg.Environment.GitHubToken)
		opts.Gate = prgate.New(lookup, cfg.Actions.SkipIfCommitsReferenceIssue, log)
	}

	r, err := runner.New(cfg, env, agent, store, log, opts)
	if err != nil {
		return err
	}

	runErr := r.Run(ctx)
	if err := index.FinishRun(runID); err != nil {
		log.Warn("marking run finished", "error", err)
	}
	sendNotifications(cfg, index, runID, log)
	return runErr
}

func sendNotifications(cfg *config.Config, index *runstore.Store, runID string, log *slog.Logger) {
	notifier := notify.NewMultiNotifier(
		notify.NewSlackNotifier(cfg.Notifications.SlackWebhook),
		notify.NewDesktopNotifier(cfg.Notifications.Desktop),
	)

	summary, err := index.Summary(runID)
	if err != nil {
		log.Warn("reading run summary", "error", err)
		return
	}
	counts := make(map[string]int, len(summary))
	for state, n := range summary {
		counts[string(state)] = n
	}
	if err := notifier.Send(notify.BatchFinished(cfg.RunName(), counts)); err != nil {
		log.Warn("sending notification", "error", err)
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	index, err := runstore.New(cfg.Run.DatabasePath)
	if err != nil {
		return err
	}
	defer index.Close()

	runName := cfg.RunName()
	if len(args) > 0 {
		runName = args[0]
	}
	run, err := index.LatestRun(runName)
	if err != nil {
		return err
	}
	if run == nil {
		fmt.Printf("No runs recorded for %s\n", runName)
		return nil
	}

	summary, err := index.Summary(run.ID)
	if err != nil {
		return err
	}

	state := "running"
	if run.FinishedAt != nil {
		state = "finished " + run.FinishedAt.Format("2006-01-02 15:04")
	}
	fmt.Printf("Run %s (%s)\n", run.Name, state)
	fmt.Printf("Instances: %d recorded | %d failed | %d running | %d skipped | %d filtered out\n",
		summary[domain.StateRecorded]+summary[domain.StateActionGated],
		summary[domain.StateFailed],
		summary[domain.StateRunning],
		summary[domain.StateSkipped],
		summary[domain.StateFilteredOut])
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	index, err := runstore.New(cfg.Run.DatabasePath)
	if err != nil {
		return err
	}
	defer index.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	if listInstances != "" {
		instances, err := index.ListInstances(listInstances)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "INSTANCE\tSTATE\tEXIT STATUS\tERROR")
		for _, inst := range instances {
			exit := string(inst.ExitStatus)
			if exit == "" {
				exit = "-"
			}
			errMsg := inst.Error
			if errMsg == "" {
				errMsg = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", inst.InstanceID, inst.State, exit, errMsg)
		}
		return w.Flush()
	}

	runs, err := index.ListRuns()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "ID\tNAME\tSTARTED\tFINISHED")
	for _, r := range runs {
		finished := "-"
		if r.FinishedAt != nil {
			finished = r.FinishedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Name, r.StartedAt.Format("2006-01-02 15:04"), finished)
	}
	return w.Flush()
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := observer.New(ctx, args[0])
	if err != nil {
		return err
	}
	defer watcher.Close()

	fmt.Printf("Watching %s\n", args[0])
	for ev := range watcher.Events() {
		switch ev.Kind {
		case observer.TrajectoryCompleted:
			fmt.Printf("completed  %s (%s)\n", ev.InstanceID, ev.ExitStatus)
		case observer.TrajectoryStarted:
			fmt.Printf("started    %s\n", ev.InstanceID)
		case observer.TrajectoryRemoved:
			fmt.Printf("removed    %s\n", ev.InstanceID)
		}
	}
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	index, err := runstore.New(cfg.Run.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open run index: %w", err)
	}
	defer index.Close()

	model := tui.NewModel(func(runID string) (tui.Snapshot, error) {
		runs, err := index.ListRuns()
		if err != nil {
			return tui.Snapshot{}, err
		}
		snap := tui.Snapshot{Runs: runs}
		if runID == "" && len(runs) > 0 {
			runID = runs[0].ID
		}
		if runID == "" {
			return snap, nil
		}
		if snap.Instances, err = index.ListInstances(runID); err != nil {
			return tui.Snapshot{}, err
		}
		if snap.Summary, err = index.Summary(runID); err != nil {
			return tui.Snapshot{}, err
		}
		return snap, nil
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
