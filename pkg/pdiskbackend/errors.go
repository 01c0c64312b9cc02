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

package pdiskbackend

import (
	"errors"
	"fmt"
	"strings"
)

var errEmptyCommand = errors.New("empty command line")

// ConfigurationError reports a missing or invalid configuration entry.
type ConfigurationError struct {
	Section string
	Key     string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.Section != "" {
		fmt.Fprintf(&b, " in section [%s]", e.Section)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " for %s", e.Key)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// UnsupportedActionError is returned for an action the backend type does not define.
type UnsupportedActionError struct {
	Action    string
	Backend   BackendType
	Supported []Action
}

func (e *UnsupportedActionError) Error() string {
	if e.Backend == "" {
		return fmt.Sprintf("unknown action %q, supported actions: %s", e.Action, joinActions(e.Supported))
	}
	return fmt.Sprintf("action %q is not supported by the %s backend, supported actions: %s",
		e.Action, e.Backend, joinActions(e.Supported))
}

// InvalidRequestError reports missing or malformed action arguments.
type InvalidRequestError struct {
	Action Action
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid %s request: %s", e.Action, e.Reason)
}

// CommandExecutionError carries the result of the step that stopped an action.
type CommandExecutionError struct {
	Action Action
	Step   int
	Result *Result
}

func (e *CommandExecutionError) Error() string {
	r := e.Result
	if r.Outcome == OutcomeAborted {
		return fmt.Sprintf("%s: step %d (%s) did not complete: %v", e.Action, e.Step+1, r.Command, r.Err)
	}
	msg := fmt.Sprintf("%s: step %d (%s) failed with exit code %d", e.Action, e.Step+1, r.Command, r.ExitCode)
	if r.ExitCode == 0 {
		msg = fmt.Sprintf("%s: step %d (%s) returned unexpected output", e.Action, e.Step+1, r.Command)
	}
	if out := strings.TrimSpace(r.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *CommandExecutionError) Unwrap() error {
	return e.Result.Err
}
