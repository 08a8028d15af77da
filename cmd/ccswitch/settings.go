package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/ccswitch/internal/infra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change ccswitch preferences",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print current settings",
	Args:  cobra.NoArgs,
	RunE: withSettings(func(s *infra.SettingsStore, args []string) error {
		data, err := yaml.Marshal(s.Current())
		if err != nil {
			return err
		}
		fmt.Printf("# %s\n%s", s.Path(), data)
		return nil
	}),
}

var settingsIntervalCmd = &cobra.Command{
	Use:   "set-interval <minutes>",
	Short: "Set the watch interval (1-60 minutes)",
	Long: `Sets how often the watch daemon polls for changes.
A running daemon picks up the new interval when restarted.`,
	Args: cobra.ExactArgs(1),
	RunE: withSettings(func(s *infra.SettingsStore, args []string) error {
		minutes, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid interval %q: %w", args[0], err)
		}
		if err := s.UpdateMonitorInterval(minutes); err != nil {
			return err
		}
		fmt.Printf("Monitor interval set to %d minutes\n", minutes)
		return nil
	}),
}

var settingsLanguageCmd = &cobra.Command{
	Use:   "set-language <en|zh|zh-CN|zh-TW|auto>",
	Short: "Set the display language",
	Args:  cobra.ExactArgs(1),
	RunE: withSettings(func(s *infra.SettingsStore, args []string) error {
		lang := args[0]
		if lang == "auto" {
			lang = ""
		}
		if err := s.UpdateLanguage(lang); err != nil {
			return err
		}
		fmt.Printf("Language set to %s\n", args[0])
		return nil
	}),
}

var settingsAutoStartCmd = &cobra.Command{
	Use:   "set-auto-start <true|false>",
	Short: "Start the watch daemon automatically after a switch",
	Args:  cobra.ExactArgs(1),
	RunE: withSettings(func(s *infra.SettingsStore, args []string) error {
		enabled, err := strconv.ParseBool(args[0])
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", args[0], err)
		}
		if err := s.UpdateAutoStartMonitoring(enabled); err != nil {
			return err
		}
		fmt.Printf("Auto-start monitoring: %t\n", enabled)
		return nil
	}),
}

var settingsNotificationsCmd = &cobra.Command{
	Use:   "set-notifications <true|false>",
	Short: "Log active profile changes from the watch daemon",
	Args:  cobra.ExactArgs(1),
	RunE: withSettings(func(s *infra.SettingsStore, args []string) error {
		enabled, err := strconv.ParseBool(args[0])
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", args[0], err)
		}
		if err := s.UpdateShowNotifications(enabled); err != nil {
			return err
		}
		fmt.Printf("Notifications: %t\n", enabled)
		return nil
	}),
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore default settings (a backup of the current ones is kept)",
	Args:  cobra.NoArgs,
	RunE: withSettings(func(s *infra.SettingsStore, args []string) error {
		backup, err := s.CreateBackup()
		if err != nil {
			return fmt.Errorf("failed to back up settings: %w", err)
		}
		if _, err := s.ResetToDefaults(); err != nil {
			return err
		}
		fmt.Printf("Settings reset to defaults (previous saved to %s)\n", backup)
		return nil
	}),
}

var settingsExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write current settings to a file",
	Args:  cobra.ExactArgs(1),
	RunE: withSettings(func(s *infra.SettingsStore, args []string) error {
		if err := s.Export(args[0]); err != nil {
			return err
		}
		fmt.Printf("Settings exported to %s\n", args[0])
		return nil
	}),
}

var settingsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load settings from a file",
	Args:  cobra.ExactArgs(1),
	RunE: withSettings(func(s *infra.SettingsStore, args []string) error {
		if _, err := s.Import(args[0]); err != nil {
			return err
		}
		fmt.Printf("Settings imported from %s\n", args[0])
		return nil
	}),
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsIntervalCmd)
	settingsCmd.AddCommand(settingsLanguageCmd)
	settingsCmd.AddCommand(settingsAutoStartCmd)
	settingsCmd.AddCommand(settingsNotificationsCmd)
	settingsCmd.AddCommand(settingsResetCmd)
	settingsCmd.AddCommand(settingsExportCmd)
	settingsCmd.AddCommand(settingsImportCmd)
}

// withSettings adapts fn to a cobra RunE with the settings store loaded.
// Settings commands work without a Claude directory.
func withSettings(fn func(s *infra.SettingsStore, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		store, err := loadSettings(resolvePaths())
		if err != nil {
			return err
		}
		return fn(store, args)
	}
}
