//go:build windows
// +build windows

package process

import (
	"os/exec"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"
)

func configureProcessGroup(cmd *exec.Cmd, logger zerolog.Logger) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}

	cmd.Cancel = func() error {
		kill := exec.Command("TASKKILL", "/T", "/F", "/PID", strconv.Itoa(cmd.Process.Pid))
		err := kill.Run()
		if err != nil {
			logger.Err(err).Msg("failed to kill process group")
		}
		return err
	}
}
