package autostart

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"
)

const unitName = "barobak.service"

const serviceTemplate = `[Unit]
Description=Barotrauma save file backup daemon
After=default.target
{{- if .WorkDir}}
ConditionPathIsDirectory={{.WorkDir}}
{{- end}}

[Service]
Type=simple
{{- if .WorkDir}}
WorkingDirectory={{.WorkDir}}
{{- end}}
ExecStart="{{.ExecPath}}" {{.Args}}
ExecStop="{{.ExecPath}}" stop
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`

var serviceTmpl = template.Must(template.New("service").Parse(serviceTemplate))

type LinuxAutoStarter struct{}

func unitDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "systemd", "user"), nil
}

func renderUnit(opts Options) ([]byte, error) {
	if opts.ExecPath == "" {
		return nil, errors.New("executable path is required")
	}

	var buf bytes.Buffer
	err := serviceTmpl.Execute(&buf, struct {
		ExecPath string
		WorkDir  string
		Args     string
	}{opts.ExecPath, opts.WorkDir, strings.Join(opts.Args(), " ")})
	if err != nil {
		return nil, fmt.Errorf("failed to render service file: %w", err)
	}
	return buf.Bytes(), nil
}

func systemctl(args ...string) error {
	cmd := exec.Command("systemctl", append([]string{"--user"}, args...)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("systemctl %s: %w\n%s", strings.Join(args, " "), err, out)
	}
	return nil
}

func (l *LinuxAutoStarter) Install(opts Options) error {
	dir, err := unitDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	unit, err := renderUnit(opts)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(dir, unitName), unit, 0644); err != nil {
		return fmt.Errorf("failed to write service file: %w", err)
	}

	if err := systemctl("daemon-reload"); err != nil {
		return err
	}
	// Restart picks up a rewritten unit when reinstalling over a running daemon.
	if err := systemctl("enable", unitName); err != nil {
		return err
	}
	return systemctl("restart", unitName)
}

func (l *LinuxAutoStarter) Uninstall() error {
	_ = systemctl("stop", unitName)
	_ = systemctl("disable", unitName)

	dir, err := unitDir()
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(dir, unitName)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return systemctl("daemon-reload")
}

func (l *LinuxAutoStarter) IsInstalled() (bool, error) {
	dir, err := unitDir()
	if err != nil {
		return false, err
	}

	_, err = os.Stat(filepath.Join(dir, unitName))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
