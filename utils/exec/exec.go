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
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/stratuslab/pdisk/utils/log"
)

// ErrCommandTimeout is wrapped by errors returned when a command outlives its timeout.
var ErrCommandTimeout = errors.New("command timed out")

// Executor is the main interface for all the exec commands
type Executor interface {
	ExecuteCommandWithCombinedOutput(command string, arg ...string) (string, error)
	ExecuteCommandWithTimeout(timeout time.Duration, command string, arg ...string) (string, error)
}

// CommandExecutor is the type of the Executor
type CommandExecutor struct {
}

var _ Executor = &CommandExecutor{}

// ExecuteCommandWithTimeout starts a process and wait for its completion with timeout.
func (*CommandExecutor) ExecuteCommandWithTimeout(timeout time.Duration, command string, arg ...string) (string, error) {
	logCommand(command, arg...)
	// #nosec G204 the backend command tables control the input to the exec arguments
	cmd := exec.Command(command, arg...)

	var b bytes.Buffer
	cmd.Stdout = &b
	cmd.Stderr = &b

	if err := cmd.Start(); err != nil {
		return "", err
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	interruptSent := false
	for {
		select {
		case <-time.After(timeout):
			if interruptSent {
				log.Infof("timeout waiting for process %s to return after interrupt signal was sent. Sending kill signal to the process", command)
				var e error
				if err := cmd.Process.Kill(); err != nil {
					log.Errorf("Failed to kill process %s: %v", command, err)
					e = fmt.Errorf("%w: %s did not return after interrupt and kill failed: %v", ErrCommandTimeout, command, err)
				} else {
					e = fmt.Errorf("%w: %s", ErrCommandTimeout, command)
				}
				return strings.TrimSpace(b.String()), e
			}

			log.Infof("timeout waiting for process %s to return. Sending interrupt signal to the process", command)
			if err := cmd.Process.Signal(os.Interrupt); err != nil {
				log.Errorf("Failed to send interrupt signal to process %s: %v", command, err)
				// kill signal will be sent next loop
			}
			interruptSent = true
		case err := <-done:
			if interruptSent {
				return strings.TrimSpace(b.String()), fmt.Errorf("%w: %s", ErrCommandTimeout, command)
			}
			if err != nil {
				return strings.TrimSpace(b.String()), err
			}
			return strings.TrimSpace(b.String()), nil
		}
	}
}

// ExecuteCommandWithCombinedOutput executes a command with combined output
func (*CommandExecutor) ExecuteCommandWithCombinedOutput(command string, arg ...string) (string, error) {
	logCommand(command, arg...)
	// #nosec G204 the backend command tables control the input to the exec arguments
	cmd := exec.Command(command, arg...)
	output, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(output)), err
}

func logCommand(command string, arg ...string) {
	log.Debugf("Running command: %s %s", command, strings.Join(arg, " "))
}
