// Package main is the CLI entry point for ccswitch.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/ccswitch/internal/daemon"
	"github.com/eliteGoblin/ccswitch/internal/domain"
	"github.com/eliteGoblin/ccswitch/internal/infra"
	"github.com/eliteGoblin/ccswitch/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ccswitch",
	Short: "Switch between Claude Code settings profiles",
	Long: `ccswitch manages named Claude Code configuration profiles.

A profile is a file named <name>.settings.json next to the live
settings.json. ccswitch reports which profile the live settings match
and atomically replaces the live settings with a chosen profile,
keeping a backup and rolling back on failure.`,
	Version:      Version,
	SilenceUsage: true,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles and their activation status",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active profile and watch daemon state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var switchCmd = &cobra.Command{
	Use:   "switch <profile>",
	Short: "Make a profile the live settings",
	Long: `Replaces settings.json with the named profile.
The live file is backed up first. If the write cannot be verified the
backup is restored. Switching to the already active profile does nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: runSwitch,
}

var diffCmd = &cobra.Command{
	Use:   "diff <profile>",
	Short: "Show how the live settings differ from a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiff,
}

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List backups of the live settings",
	Args:  cobra.NoArgs,
	RunE:  runBackups,
}

var restoreCmd = &cobra.Command{
	Use:   "restore <backup>",
	Short: "Restore the live settings from a backup",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestore,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch profile files and keep activation status current",
	Long: `Polls settings.json and every profile for changes and refreshes
activation status when one changes. Runs in the foreground unless
--detach is given. --install registers it to start at login.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent switches from the encrypted journal",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	flagDir      string
	flagConfig   string
	verbose      bool
	jsonOutput   bool
	detach       bool
	install      bool
	uninstall    bool
	historyLimit int
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", "", "Claude config directory (default: auto-detect)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "ccswitch settings file (default: $"+infra.ConfigEnvVar+" or ~/.config/ccswitch/settings.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")

	watchCmd.Flags().BoolVar(&detach, "detach", false, "Run the watch daemon in the background")
	watchCmd.Flags().BoolVar(&install, "install", false, "Start the watch daemon at login (macOS LaunchAgent)")
	watchCmd.Flags().BoolVar(&uninstall, "uninstall", false, "Remove the login LaunchAgent")
	watchCmd.MarkFlagsMutuallyExclusive("detach", "install", "uninstall")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(switchCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(backupsCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(versionCmd)
}

// app holds the components shared by the commands.
type app struct {
	paths    infra.Paths
	settings *infra.SettingsStore
	store    *usecase.ProfileStore
	journal  *infra.Journal
	registry *infra.FileRegistry
	pm       domain.ProcessManager
	fs       *infra.OSFileSystem
	logger   *zap.Logger
}

func resolvePaths() infra.Paths {
	paths := infra.DefaultPaths()
	if flagConfig != "" {
		paths.SettingsFile = flagConfig
	}
	return paths
}

func loadSettings(paths infra.Paths) (*infra.SettingsStore, error) {
	settings := infra.NewSettingsStore(paths.SettingsFile)
	if _, err := settings.Load(); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return settings, nil
}

// newApp loads settings, locates the Claude directory and scans its profiles.
// A journal that cannot be opened only disables history.
func newApp(logger *zap.Logger) (*app, error) {
	paths := resolvePaths()
	settings, err := loadSettings(paths)
	if err != nil {
		return nil, err
	}
	current := settings.Current()

	dir, err := resolveClaudeDir(paths, current)
	if err != nil {
		return nil, err
	}

	fs := infra.NewFileSystemWithHome(paths.Home)
	pm := infra.NewProcessManager()
	a := &app{
		paths:    paths,
		settings: settings,
		registry: infra.NewFileRegistry(paths.DataDir, pm),
		pm:       pm,
		fs:       fs,
		logger:   logger,
	}

	cfg := usecase.DefaultStoreConfig(dir)
	if current.PartialMatchIgnore != nil {
		cfg.IgnoredFields = current.PartialMatchIgnore
	}
	deps := usecase.StoreDeps{
		FS:      fs,
		Backups: infra.NewBackupManager(fs, filepath.Join(dir, cfg.SettingsFile), logger),
		Logger:  logger,
	}

	journal, err := infra.OpenJournalWithKey(paths.DataDir, infra.NewJournalKey(paths.DataDir))
	if err != nil {
		logger.Warn("switch journal unavailable", zap.Error(err))
	} else {
		a.journal = journal
		deps.Journal = journal
	}

	a.store, err = usecase.NewProfileStore(cfg, deps)
	if err != nil {
		a.Close()
		return nil, err
	}
	if _, err := a.store.Scan(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("failed to close journal", zap.Error(err))
		}
	}
}

// resolveClaudeDir prefers --dir, then the settings override, then auto-detection.
func resolveClaudeDir(paths infra.Paths, settings infra.UserSettings) (string, error) {
	if flagDir != "" {
		dir := infra.NewFileSystemWithHome(paths.Home).ExpandHome(flagDir)
		if !infra.IsValidClaudeDir(dir) {
			return "", fmt.Errorf("%s does not contain %s", dir, infra.LiveSettingsName)
		}
		return dir, nil
	}
	detector := infra.NewDetectorWithHome(paths.Home, os.Getenv)
	return detector.Detect(settings.ClaudeDir)
}

// withApp runs fn with a fully wired app and the CLI logger.
func withApp(fn func(a *app) error) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	a, err := newApp(logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func statusMarker(s domain.ActivationStatus) string {
	switch s.Kind {
	case domain.StatusFullMatch:
		return "*"
	case domain.StatusPartialMatch:
		return "~"
	case domain.StatusError:
		return "!"
	default:
		return " "
	}
}

func runList(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		profiles := a.store.Profiles()
		fmt.Printf("Profiles in %s:\n", a.store.Dir())
		if len(profiles) == 0 {
			fmt.Println("  (none) create <name>.settings.json to add one")
			return nil
		}
		for _, p := range profiles {
			line := fmt.Sprintf("%s %-20s %s", statusMarker(p.Status), p.Name, p.Status)
			if p.Status.Kind == domain.StatusError {
				line += ": " + p.Status.Reason
			}
			fmt.Println(line)
		}
		return nil
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		fmt.Println("\n=== ccswitch Status ===")
		fmt.Printf("Claude dir: %s\n", a.store.Dir())

		if name, ok := a.store.ActiveProfile(); ok {
			fmt.Printf("Active profile: %s (%s)\n", name, a.store.StatusOf(name))
		} else {
			fmt.Println("Active profile: none (live settings match no profile)")
		}

		if info, err := a.fs.Stat(a.store.SettingsPath()); err == nil {
			fmt.Printf("Live settings: %s, modified %s\n",
				humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))
		}

		if infra.IsToolRunning(a.pm) {
			fmt.Println("Claude Code: running (switches apply on next launch)")
		}

		printWatchState(a)
		fmt.Println("=======================")
		return nil
	})
}

func printWatchState(a *app) {
	state, err := a.registry.Get()
	if err != nil {
		fmt.Printf("Watch daemon: unknown (%v)\n", err)
		return
	}
	alive, _ := a.registry.IsAlive()
	if state == nil || !alive {
		fmt.Println("Watch daemon: NOT RUNNING")
		if a.settings.Current().AutoStartMonitoring {
			fmt.Println("              (starts automatically on next switch)")
		}
		return
	}
	fmt.Printf("Watch daemon: RUNNING (pid %d, every %dm, %d files)\n",
		state.PID, state.IntervalMinutes, state.Watched)
	if state.LastHeartbeat > 0 {
		fmt.Printf("Last heartbeat: %s\n", humanize.Time(time.Unix(state.LastHeartbeat, 0)))
	}
}

func runSwitch(cmd *cobra.Command, args []string) error {
	name := args[0]
	return withApp(func(a *app) error {
		if a.store.StatusOf(name).Kind == domain.StatusFullMatch {
			fmt.Printf("Profile %q is already active\n", name)
			return nil
		}
		if err := a.store.Switch(name); err != nil {
			if errors.Is(err, domain.ErrRollbackFailed) {
				fmt.Fprintln(os.Stderr, "Live settings may be inconsistent; see 'ccswitch backups'.")
			}
			return err
		}
		fmt.Printf("Switched to %q\n", name)
		if infra.IsToolRunning(a.pm) {
			fmt.Println("Claude Code is running; restart it to apply the new settings.")
		}
		ensureWatching(a)
		return nil
	})
}

// ensureWatching starts the watch daemon when auto-start is enabled and none is alive.
func ensureWatching(a *app) {
	if !a.settings.Current().AutoStartMonitoring {
		return
	}
	if alive, err := a.registry.IsAlive(); err != nil || alive {
		return
	}
	pid, err := daemon.StartDetached(daemonArgs()...)
	if err != nil {
		a.logger.Warn("failed to auto-start watch daemon", zap.Error(err))
		return
	}
	fmt.Printf("Started watch daemon (pid %d)\n", pid)
}

func daemonArgs() []string {
	var args []string
	if flagDir != "" {
		args = append(args, "--dir", flagDir)
	}
	if flagConfig != "" {
		args = append(args, "--config", flagConfig)
	}
	return args
}

func runDiff(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		diff, err := a.store.Diff(args[0])
		if err != nil {
			return err
		}
		if diff == "" {
			fmt.Println("Live settings are identical to the profile.")
			return nil
		}
		fmt.Println("(-live +profile)")
		fmt.Print(diff)
		return nil
	})
}

func runBackups(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		backups, err := a.store.Backups()
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			fmt.Println("No backups.")
			return nil
		}
		for _, b := range backups {
			fmt.Printf("%-40s %8s  %s\n", b.Name, humanize.Bytes(uint64(b.Size)), humanize.Time(b.ModTime))
		}
		return nil
	})
}

func runRestore(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		if err := a.store.RestoreBackup(args[0]); err != nil {
			return err
		}
		fmt.Printf("Restored live settings from %s\n", args[0])
		if name, ok := a.store.ActiveProfile(); ok {
			fmt.Printf("Active profile: %s\n", name)
		}
		return nil
	})
}

func runHistory(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		if a.journal == nil {
			return errors.New("switch journal is unavailable")
		}
		records, err := a.journal.Recent(historyLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No switches recorded.")
			return nil
		}
		for _, r := range records {
			line := fmt.Sprintf("%-16s %-20s %-22s %s", humanize.Time(r.ExecutedAt), r.Profile, r.Outcome, shortID(r.ID))
			if r.Error != "" {
				line += "  " + r.Error
			}
			fmt.Println(line)
		}
		return nil
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runWatch(cmd *cobra.Command, args []string) error {
	if install || uninstall {
		return runLoginItem()
	}
	if detach {
		paths := resolvePaths()
		registry := infra.NewFileRegistry(paths.DataDir, infra.NewProcessManager())
		if alive, _ := registry.IsAlive(); alive {
			fmt.Println("Watch daemon is already running")
			return nil
		}
		pid, err := daemon.StartDetached(daemonArgs()...)
		if err != nil {
			return fmt.Errorf("failed to start watch daemon: %w", err)
		}
		fmt.Printf("Watch daemon started (pid %d), logging to %s\n", pid, paths.LogFile)
		return nil
	}

	logger := daemonLogger(resolvePaths().LogFile)
	defer func() { _ = logger.Sync() }()

	a, err := newApp(logger)
	if err != nil {
		logger.Error("watch daemon failed to start", zap.Error(err))
		return err
	}
	defer a.Close()

	if alive, _ := a.registry.IsAlive(); alive {
		return domain.ErrAlreadyRunning
	}

	settings := a.settings.Current()
	mcfg := daemon.DefaultMonitorConfig()
	mcfg.Interval = settings.MonitorInterval()
	monitor := daemon.NewMonitor(mcfg, a.fs, infra.NewProber(a.fs), logger)

	scfg := daemon.DefaultServiceConfig()
	scfg.Version = Version
	service := daemon.NewService(scfg, a.store, monitor, a.registry, a.pm, logger)
	service.OnRefresh = activeProfileReporter(logger, settings.ShowNotifications)

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	err = service.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runLoginItem() error {
	item := infra.NewLoginItem(resolvePaths())
	if uninstall {
		if err := item.Uninstall(); err != nil {
			return err
		}
		fmt.Println("Removed login item")
		return nil
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	if item.IsInstalled() && !item.NeedsUpdate(executable, daemonArgs()...) {
		fmt.Println("Login item already installed")
		return nil
	}
	if err := item.Install(executable, daemonArgs()...); err != nil {
		return fmt.Errorf("failed to install login item: %w", err)
	}
	fmt.Printf("Installed LaunchAgent %s\n", item.PlistPath())
	return nil
}

// activeProfileReporter logs whenever the fully matching profile changes.
func activeProfileReporter(logger *zap.Logger, notify bool) func([]domain.ProfileStatus) {
	var last string
	return func(statuses []domain.ProfileStatus) {
		active := ""
		for _, s := range statuses {
			if s.Status.Kind == domain.StatusFullMatch {
				active = s.Name
				break
			}
		}
		if active == last {
			return
		}
		last = active
		if !notify {
			return
		}
		if active == "" {
			logger.Info("live settings no longer match any profile")
			return
		}
		logger.Info("active profile changed", zap.String("profile", active))
	}
}

// cliLogger is silent unless --verbose.
func cliLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func daemonLogger(logFile string) *zap.Logger {
	if verbose {
		return cliLogger()
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0700); err != nil {
		logger, _ := zap.NewProduction()
		return logger
	}

	config := zap.NewProductionConfig()
	config.OutputPaths = []string{logFile}
	config.ErrorOutputPaths = []string{logFile}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("ccswitch %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
