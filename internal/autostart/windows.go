package autostart

import (
	"fmt"
	"os/exec"
	"strings"
)

const taskName = "BarobakDaemon"

type WindowsAutoStarter struct{}

func schtasks(args ...string) ([]byte, error) {
	return exec.Command("schtasks", args...).CombinedOutput()
}

func (w *WindowsAutoStarter) Install(opts Options) error {
	if out, err := schtasks(createTaskArgs(opts)...); err != nil {
		return fmt.Errorf("failed to register task: %w\n%s", err, out)
	}

	// ONLOGON only fires at the next login; start it now as well.
	if out, err := schtasks("/Run", "/TN", taskName); err != nil {
		return fmt.Errorf("task registered but failed to start: %w\n%s", err, out)
	}
	return nil
}

func (w *WindowsAutoStarter) Uninstall() error {
	_, _ = schtasks("/End", "/TN", taskName)

	if out, err := schtasks("/Delete", "/TN", taskName, "/F"); err != nil {
		return fmt.Errorf("failed to remove task: %w\n%s", err, out)
	}
	return nil
}

func (w *WindowsAutoStarter) IsInstalled() (bool, error) {
	if _, err := schtasks("/Query", "/TN", taskName); err != nil {
		return false, nil
	}
	return true, nil
}

// createTaskArgs registers a per-user logon task. schtasks has no working
// directory option, so the executable path is used as is.
func createTaskArgs(opts Options) []string {
	return []string{
		"/Create",
		"/TN", taskName,
		"/TR", fmt.Sprintf(`"%s" %s`, opts.ExecPath, strings.Join(opts.Args(), " ")),
		"/SC", "ONLOGON",
		"/RL", "LIMITED",
		"/F",
	}
}
