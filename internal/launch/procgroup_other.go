//go:build !unix

package launch

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}
