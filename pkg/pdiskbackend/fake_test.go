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
	"strings"
	"time"

	"github.com/stratuslab/pdisk/utils/exec"
)

type reply struct {
	output string
	code   int
	err    error
	// do runs before the reply is returned
	do func()
}

type rule struct {
	match string
	reply reply
}

// fakeExecutor records every command line and answers with the first rule
// whose match is a substring of it. Unmatched commands succeed silently.
type fakeExecutor struct {
	rules    []rule
	calls    [][]string
	timeouts []time.Duration
}

var _ exec.Executor = &fakeExecutor{}

func (f *fakeExecutor) on(match string, r reply) *fakeExecutor {
	f.rules = append(f.rules, rule{match: match, reply: r})
	return f
}

func (f *fakeExecutor) ExecuteCommandWithCombinedOutput(command string, arg ...string) (string, error) {
	argv := append([]string{command}, arg...)
	f.calls = append(f.calls, argv)
	line := strings.Join(argv, " ")
	for _, r := range f.rules {
		if strings.Contains(line, r.match) {
			if r.reply.do != nil {
				r.reply.do()
			}
			if r.reply.err != nil {
				return r.reply.output, r.reply.err
			}
			if r.reply.code != 0 {
				return r.reply.output, exec.CodeExitError{Err: errors.New("exit status"), Code: r.reply.code}
			}
			return r.reply.output, nil
		}
	}
	return "", nil
}

func (f *fakeExecutor) ExecuteCommandWithTimeout(timeout time.Duration, command string, arg ...string) (string, error) {
	f.timeouts = append(f.timeouts, timeout)
	return f.ExecuteCommandWithCombinedOutput(command, arg...)
}

func (f *fakeExecutor) commandLines() []string {
	lines := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		lines = append(lines, strings.Join(c, " "))
	}
	return lines
}

type recordingObserver struct {
	commands []string
	outcomes []Outcome
}

func (o *recordingObserver) ObserveCommand(backend BackendType, command string, outcome Outcome, d time.Duration) {
	o.commands = append(o.commands, string(backend)+"/"+command)
	o.outcomes = append(o.outcomes, outcome)
}
