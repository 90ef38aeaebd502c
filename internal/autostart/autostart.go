// Package autostart registers the watch daemon to start at login.
package autostart

import (
	"errors"
	"runtime"
)

var ErrUnsupported = errors.New("autostart is not supported on " + runtime.GOOS)

// Options describe how the registered daemon is launched.
type Options struct {
	ExecPath string
	// WorkDir is the daemon's working directory, the config dir by default.
	WorkDir string
	Debug   bool
}

// Args returns the command line passed to the executable.
func (o Options) Args() []string {
	args := []string{"watch"}
	if o.Debug {
		args = append(args, "--debug")
	}
	return args
}

type AutoStarter interface {
	Install(opts Options) error
	Uninstall() error
	IsInstalled() (bool, error)
}

func New() AutoStarter {
	switch runtime.GOOS {
	case "windows":
		return &WindowsAutoStarter{}
	case "linux":
		return &LinuxAutoStarter{}
	default:
		return &UnsupportedAutoStarter{}
	}
}

type UnsupportedAutoStarter struct{}

func (u *UnsupportedAutoStarter) Install(_ Options) error {
	return ErrUnsupported
}

func (u *UnsupportedAutoStarter) Uninstall() error {
	return ErrUnsupported
}

func (u *UnsupportedAutoStarter) IsInstalled() (bool, error) {
	return false, nil
}
