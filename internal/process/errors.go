package process

import "errors"

var (
	// ErrNoCommand is returned by NewSupervisor when Config.Command is empty.
	ErrNoCommand = errors.New("process: no command configured")

	// ErrAlreadyRunning is returned by Start while the command is running.
	ErrAlreadyRunning = errors.New("process: already running")

	// ErrExited is recorded when a watch command exits with status 0.
	ErrExited = errors.New("process: command exited")
)
