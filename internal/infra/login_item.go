package infra

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"
)

// LoginItemLabel is the launchd label of the watch daemon agent.
const LoginItemLabel = "io.github.elitegoblin.ccswitch.watch"

// LaunchAgent plist template (runs as user)
const launchAgentTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>watch</string>
{{- range .Args}}
        <string>{{.}}</string>
{{- end}}
    </array>

    <key>RunAtLoad</key>
    <true/>

    <key>KeepAlive</key>
    <dict>
        <key>Crashed</key>
        <true/>
    </dict>

    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>

    <key>StandardErrorPath</key>
    <string>{{.LogPath}}</string>

    <key>ProcessType</key>
    <string>Background</string>

    <key>ThrottleInterval</key>
    <integer>10</integer>
</dict>
</plist>`

type plistConfig struct {
	Label          string
	ExecutablePath string
	Args           []string
	LogPath        string
}

// LoginItem installs the watch daemon as a macOS LaunchAgent so it starts at login.
type LoginItem struct {
	plistPath string
	logPath   string
	run       func(name string, args ...string) error
}

// NewLoginItem creates a login item under ~/Library/LaunchAgents.
func NewLoginItem(paths Paths) *LoginItem {
	return NewLoginItemWithDir(filepath.Join(paths.Home, "Library", "LaunchAgents"), paths.LogFile, runCommand)
}

// NewLoginItemWithDir creates a login item in a custom directory with a
// custom launchctl runner (for testing).
func NewLoginItemWithDir(dir, logPath string, run func(name string, args ...string) error) *LoginItem {
	return &LoginItem{
		plistPath: filepath.Join(dir, LoginItemLabel+".plist"),
		logPath:   logPath,
		run:       run,
	}
}

func runCommand(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// PlistPath returns the plist file path.
func (l *LoginItem) PlistPath() string {
	return l.plistPath
}

func (l *LoginItem) render(execPath string, args []string) ([]byte, error) {
	tmpl, err := template.New("plist").Parse(launchAgentTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plist template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, plistConfig{
		Label:          LoginItemLabel,
		ExecutablePath: execPath,
		Args:           args,
		LogPath:        l.logPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute plist template: %w", err)
	}
	return buf.Bytes(), nil
}

// Install writes the plist for `<execPath> watch <args...>` and loads it.
// An existing plist is unloaded and replaced.
func (l *LoginItem) Install(execPath string, args ...string) error {
	content, err := l.render(execPath, args)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(l.plistPath), 0755); err != nil {
		return err
	}

	if l.IsInstalled() {
		_ = l.run("launchctl", "unload", l.plistPath) // Ignore errors if not loaded
	}
	if err := os.WriteFile(l.plistPath, content, 0644); err != nil {
		return err
	}
	return l.run("launchctl", "load", l.plistPath)
}

// Uninstall unloads and removes the plist.
func (l *LoginItem) Uninstall() error {
	_ = l.run("launchctl", "unload", l.plistPath) // Ignore errors if not loaded
	if err := os.Remove(l.plistPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsInstalled checks if the plist exists.
func (l *LoginItem) IsInstalled() bool {
	_, err := os.Stat(l.plistPath)
	return err == nil
}

// NeedsUpdate reports whether an installed plist differs from what Install would write.
func (l *LoginItem) NeedsUpdate(execPath string, args ...string) bool {
	if !l.IsInstalled() {
		return false // Doesn't exist, needs install not update
	}
	current, err := os.ReadFile(l.plistPath)
	if err != nil {
		return true
	}
	expected, err := l.render(execPath, args)
	if err != nil {
		return true
	}
	return !bytes.Equal(current, expected)
}
