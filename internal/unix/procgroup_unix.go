//go:build linux || darwin

// Package unix provides platform-specific process group helpers.
package unix

import "syscall"

// SysProcAttr places the child in its own process group so the IOC and
// anything it spawns can be signalled together.
func SysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// KillGroup sends SIGKILL to the process group led by pid.
func KillGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}
