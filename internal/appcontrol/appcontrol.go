// Package appcontrol opens and closes applications, files and URLs through
// the host OS launcher facilities.
package appcontrol

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// processRunner spawns OS processes. Start launches detached and does not
// wait; Run waits and reports a non-zero exit as an error.
type processRunner interface {
	Start(ctx context.Context, name string, args ...string) error
	Run(ctx context.Context, name string, args ...string) error
}

// OSRunner is the production processRunner backed by os/exec.
type OSRunner struct{}

func (OSRunner) Start(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

func (OSRunner) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Friendly-name lookups per platform. Unmapped names pass through as-is.
var (
	darwinApps = map[string]string{
		"safari":     "Safari",
		"chrome":     "Google Chrome",
		"firefox":    "Firefox",
		"mail":       "Mail",
		"notes":      "Notes",
		"calculator": "Calculator",
		"terminal":   "Terminal",
		"finder":     "Finder",
		"excel":      "Microsoft Excel",
		"word":       "Microsoft Word",
	}

	linuxApps = map[string]string{
		"chrome":     "google-chrome",
		"firefox":    "firefox",
		"terminal":   "gnome-terminal",
		"files":      "nautilus",
		"calculator": "gnome-calculator",
		"text":       "gedit",
	}

	windowsApps = map[string]string{
		"notepad":    "notepad.exe",
		"calculator": "calc.exe",
		"chrome":     "chrome.exe",
		"firefox":    "firefox.exe",
		"explorer":   "explorer.exe",
		"word":       "winword.exe",
		"excel":      "excel.exe",
	}
)

// Controller launches and terminates applications for the current platform.
type Controller struct {
	goos   string
	runner processRunner
	logger *slog.Logger
}

// New creates a Controller for the running OS.
func New(logger *slog.Logger) *Controller {
	return newController(runtime.GOOS, OSRunner{}, logger)
}

func newController(goos string, runner processRunner, logger *slog.Logger) *Controller {
	if runner == nil {
		panic("runner is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{goos: goos, runner: runner, logger: logger}
}

// OpenApplication launches the named application. Friendly names like
// "chrome" resolve to the platform binary; anything else is launched
// verbatim.
func (c *Controller) OpenApplication(ctx context.Context, name string) (string, error) {
	var err error
	switch c.goos {
	case "darwin":
		err = c.runner.Start(ctx, "open", "-a", resolveApp(darwinApps, name))
	case "windows":
		err = c.runner.Start(ctx, "cmd", "/c", "start", "", resolveApp(windowsApps, name))
	default:
		err = c.runner.Start(ctx, resolveApp(linuxApps, name))
	}
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", name, err)
	}
	c.logger.Info("opened application", slog.String("app", name))
	return "Opened " + name, nil
}

// CloseApplication terminates processes matching name. force skips the
// graceful signal.
func (c *Controller) CloseApplication(ctx context.Context, name string, force bool) (string, error) {
	var err error
	switch c.goos {
	case "windows":
		args := []string{"/IM", ensureExe(name)}
		if force {
			args = append([]string{"/F"}, args...)
		}
		err = c.runner.Run(ctx, "taskkill", args...)
	default:
		signal := "-TERM"
		if force {
			signal = "-KILL"
		}
		err = c.runner.Run(ctx, "pkill", signal, "-i", name)
	}
	if err != nil {
		return "", fmt.Errorf("no running instances of %s found", name)
	}
	c.logger.Info("closed application", slog.String("app", name), slog.Bool("force", force))
	return "Closed " + name, nil
}

// OpenPath opens a file or directory with its default application. The
// target must exist.
func (c *Controller) OpenPath(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("path not found: %s", path)
	}

	err := c.launch(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	c.logger.Info("opened path", slog.String("path", path))
	return "Opened " + path, nil
}

// OpenURL opens url in the default browser.
func (c *Controller) OpenURL(ctx context.Context, url string) (string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	if err := c.launch(ctx, url); err != nil {
		return "", fmt.Errorf("failed to open URL %s: %w", url, err)
	}
	c.logger.Info("opened url", slog.String("url", url))
	return "Opened " + url, nil
}

// launch hands target to the platform opener.
func (c *Controller) launch(ctx context.Context, target string) error {
	switch c.goos {
	case "darwin":
		return c.runner.Start(ctx, "open", target)
	case "windows":
		return c.runner.Start(ctx, "cmd", "/c", "start", "", target)
	default:
		return c.runner.Start(ctx, "xdg-open", target)
	}
}

func resolveApp(mapping map[string]string, name string) string {
	if mapped, ok := mapping[strings.ToLower(name)]; ok {
		return mapped
	}
	return name
}

func ensureExe(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".exe") {
		return name
	}
	return name + ".exe"
}
