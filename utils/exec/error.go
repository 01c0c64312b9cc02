/*
   Copyright 2022 The StratusLab pdisk Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package exec

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
)

// ExitStatus returns the exit code carried by err, false when the
// process never ran to completion (not found, timeout, killed).
func ExitStatus(err error) (int, bool) {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		waitStatus, ok := exitErr.ProcessState.Sys().(syscall.WaitStatus)
		if ok {
			if waitStatus.Signaled() {
				return 0, false
			}
			return waitStatus.ExitStatus(), true
		}
	}
	var codeErr CodeExitError
	if errors.As(err, &codeErr) {
		return codeErr.Code, true
	}
	return 0, false
}

// CodeExitError reports an exit status without a real process behind it.
type CodeExitError struct {
	Err  error
	Code int
}

func (e CodeExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e CodeExitError) Unwrap() error {
	return e.Err
}
