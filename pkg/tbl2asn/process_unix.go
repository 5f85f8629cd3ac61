//go:build unix

package tbl2asn

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// killProcessGroup starts the tool in its own process group and, on timeout
// or cancellation, kills the whole group so helper processes holding the
// output pipes go with it.
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
}
