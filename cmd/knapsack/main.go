package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/cryptoknapsack/internal/config"
	"github.com/eugenenazirov/cryptoknapsack/internal/knapsack"
	"github.com/eugenenazirov/cryptoknapsack/internal/logging"
	"github.com/eugenenazirov/cryptoknapsack/internal/playback"
	"github.com/eugenenazirov/cryptoknapsack/internal/session"
	"github.com/eugenenazirov/cryptoknapsack/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "knapsack:", err)
		os.Exit(1)
	}
}

type options struct {
	configFile   string
	capacity     int
	items        string
	algorithm    string
	initialDelay time.Duration
	stepDelay    time.Duration
	logLevel     string
}

func run(ctx context.Context, args []string, out io.Writer) error {
	var opts options

	app := kingpin.New("knapsack", "Solve and play back 0/1 knapsack selections")
	app.Flag("config", "Path to YAML configuration file").StringVar(&opts.configFile)
	app.Flag("capacity", "Knapsack capacity").Default("-1").IntVar(&opts.capacity)
	app.Flag("items", "Comma-separated label:size:profit catalog").StringVar(&opts.items)
	app.Flag("log-level", "Log level (debug, info, warn, error); defaults to warn").StringVar(&opts.logLevel)

	solveCmd := app.Command("solve", "Print the selection an algorithm makes")
	solveCmd.Flag("algorithm", "Algorithm name").Short('a').Default("Dynamic Programming").StringVar(&opts.algorithm)

	playCmd := app.Command("play", "Play an algorithm's selection back in real time")
	playCmd.Flag("algorithm", "Algorithm name").Short('a').Default("Dynamic Programming").StringVar(&opts.algorithm)
	playCmd.Flag("initial-delay", "Delay before the first notification").Default("-1ns").DurationVar(&opts.initialDelay)
	playCmd.Flag("step-delay", "Delay between notifications").Default("-1ns").DurationVar(&opts.stepDelay)

	algorithmsCmd := app.Command("algorithms", "List the available algorithms")

	app.UsageWriter(out)
	command, err := app.Parse(args)
	if err != nil {
		return err
	}

	registry := knapsack.DefaultRegistry()
	if command == algorithmsCmd.FullCommand() {
		for _, name := range registry.Names() {
			fmt.Fprintln(out, name)
		}
		return nil
	}

	cfg, err := config.Load(opts.overrides())
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	alg, ok := registry.Lookup(opts.algorithm)
	if !ok {
		return fmt.Errorf("unknown algorithm %q", opts.algorithm)
	}

	switch command {
	case solveCmd.FullCommand():
		return solve(out, alg, cfg)
	case playCmd.FullCommand():
		return play(ctx, out, alg, cfg, logger)
	}
	return fmt.Errorf("unknown command %q", command)
}

func (o options) overrides() *config.CLIOverrides {
	overrides := &config.CLIOverrides{
		ConfigFile:      o.configFile,
		DefaultLogLevel: "warn",
	}
	if o.logLevel != "" {
		overrides.LogLevel = &o.logLevel
	}
	if o.capacity >= 0 {
		overrides.Capacity = &o.capacity
	}
	if o.items != "" {
		overrides.ItemsStr = &o.items
	}
	if o.initialDelay >= 0 {
		overrides.InitialDelay = &o.initialDelay
	}
	if o.stepDelay >= 0 {
		overrides.StepDelay = &o.stepDelay
	}
	return overrides
}

func solve(out io.Writer, alg knapsack.Algorithm, cfg config.Config) error {
	start := time.Now()
	ids := alg.Solve(cfg.Items, cfg.Capacity)
	elapsed := time.Since(start)

	summary, err := knapsack.Summarize(cfg.Items, ids)
	if err != nil {
		return fmt.Errorf("%s returned an invalid selection: %w", alg.DisplayName(), err)
	}

	fmt.Fprintf(out, "Algorithm: %s\n", alg.DisplayName())
	if err := printItems(out, cfg.Items, ids); err != nil {
		return err
	}
	fmt.Fprintf(out, "Total: %d items, size %d/%d, profit %d (%s)\n",
		summary.Count, summary.TotalSize, cfg.Capacity, summary.TotalProfit, elapsed.Round(time.Microsecond))
	return nil
}

func play(ctx context.Context, out io.Writer, alg knapsack.Algorithm, cfg config.Config, logger *zap.Logger) error {
	store := storage.NewMemoryStorage()
	if err := store.SetItems(cfg.Items); err != nil {
		return err
	}
	sess, err := session.New(store, cfg.Capacity, logger)
	if err != nil {
		return err
	}

	labels := make(map[int]string, len(cfg.Items))
	for _, it := range cfg.Items {
		labels[it.ID] = it.String()
	}

	finished := make(chan struct{})
	scheduler := playback.NewRealtimeScheduler()
	player := playback.NewPlayer(sess, scheduler,
		playback.WithDelays(cfg.InitialDelay, cfg.StepDelay),
		playback.WithLogger(logger),
		playback.WithObserver(playback.ObserverFunc(func(evt playback.Event) {
			printEvent(out, evt, labels)
			if evt.Kind == playback.EventFinished {
				close(finished)
			}
		})),
	)

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = scheduler.Run(runCtx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	if _, err := player.Start(alg); err != nil {
		return err
	}

	select {
	case <-finished:
	case <-ctx.Done():
		player.Stop()
		<-finished
	}

	snap := sess.Snapshot()
	fmt.Fprintf(out, "Knapsack: %d items, level %d/%d, profit %d\n", len(snap.Selected), snap.Level, snap.Capacity, snap.Profit)
	return nil
}

func printEvent(out io.Writer, evt playback.Event, labels map[int]string) {
	switch evt.Kind {
	case playback.EventItemAdded, playback.EventItemSkipped:
		fmt.Fprintf(out, "%8s  %-12s %s\n", evt.At.Round(time.Millisecond), evt.Kind, labels[evt.ItemID])
	default:
		fmt.Fprintf(out, "%8s  %-12s %s\n", evt.At.Round(time.Millisecond), evt.Kind, evt.Algorithm)
	}
}

func printItems(out io.Writer, items []knapsack.Item, ids []int) error {
	byID := make(map[int]knapsack.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tSIZE\tPROFIT")
	for _, id := range ids {
		it := byID[id]
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", it.ID, it.String(), it.Size, it.Profit)
	}
	return tw.Flush()
}
