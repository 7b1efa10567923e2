//go:build !linux && !darwin

// Package unix provides platform-specific process group helpers.
package unix

import (
	"os"
	"syscall"
)

// SysProcAttr returns nil; process groups are not used on this platform.
func SysProcAttr() *syscall.SysProcAttr {
	return nil
}

// KillGroup kills the single process pid.
func KillGroup(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
