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
	"strings"
	"time"

	"github.com/stratuslab/pdisk/utils/exec"
	"github.com/stratuslab/pdisk/utils/log"
)

// Outcome classifies the execution of one command.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	// OutcomeBenign is a failure whitelisted by a failure-is-ok pattern,
	// the sequence goes on.
	OutcomeBenign
	OutcomeFailed
	// OutcomeAborted means the command could not run to completion.
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeBenign:
		return "benign"
	case OutcomeFailed:
		return "failed"
	case OutcomeAborted:
		return "aborted"
	}
	return "unknown"
}

// Ok reports whether the sequence may continue after this outcome.
func (o Outcome) Ok() bool {
	return o == OutcomeSucceeded || o == OutcomeBenign
}

// Result is the outcome of one executed command.
type Result struct {
	Command  string
	Argv     []string
	ExitCode int
	Output   string
	// Value is the first capture group of the matching success pattern, or
	// the whole trimmed output.
	Value    string
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// Observer is told about every executed command.
type Observer interface {
	ObserveCommand(backend BackendType, command string, outcome Outcome, d time.Duration)
}

// CommandExecutor runs command specs and classifies their output.
type CommandExecutor struct {
	executor exec.Executor
	timeout  time.Duration
	observer Observer
}

type ExecutorOption func(*CommandExecutor)

// WithTimeout bounds every command, zero means no limit.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(c *CommandExecutor) {
		c.timeout = d
	}
}

func WithObserver(o Observer) ExecutorOption {
	return func(c *CommandExecutor) {
		c.observer = o
	}
}

func NewCommandExecutor(executor exec.Executor, opts ...ExecutorOption) *CommandExecutor {
	c := &CommandExecutor{executor: executor}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes argv, the detokenized and prefixed form of spec.
func (c *CommandExecutor) Run(backend BackendType, spec CommandSpec, argv []string) *Result {
	res := &Result{
		Command: spec.Name,
		Argv:    append([]string{}, argv...),
	}
	if len(argv) == 0 {
		res.Outcome = OutcomeAborted
		res.Err = errEmptyCommand
		return res
	}

	begin := time.Now()
	var output string
	var err error
	if c.timeout > 0 {
		output, err = c.executor.ExecuteCommandWithTimeout(c.timeout, argv[0], argv[1:]...)
	} else {
		output, err = c.executor.ExecuteCommandWithCombinedOutput(argv[0], argv[1:]...)
	}
	res.Duration = time.Since(begin)
	res.Output = output

	if err != nil {
		code, ok := exec.ExitStatus(err)
		if !ok {
			res.Outcome = OutcomeAborted
			res.Err = err
			res.ExitCode = -1
			log.Errorf("%s: command %s could not complete: %v", backend, spec.Name, err)
			c.observe(backend, spec.Name, res)
			return res
		}
		res.ExitCode = code
	}

	res.Outcome, res.Value = Classify(spec, res.ExitCode, output)
	switch res.Outcome {
	case OutcomeSucceeded:
		log.Debugf("%s: command %s succeeded", backend, spec.Name)
	case OutcomeBenign:
		log.Infof("%s: command %s failed with exit code %d, tolerated: %s", backend, spec.Name, res.ExitCode, output)
	default:
		log.Errorf("%s: command %s failed with exit code %d: %s", backend, spec.Name, res.ExitCode, output)
	}
	c.observe(backend, spec.Name, res)
	return res
}

func (c *CommandExecutor) observe(backend BackendType, command string, res *Result) {
	if c.observer != nil {
		c.observer.ObserveCommand(backend, command, res.Outcome, res.Duration)
	}
}

// Classify decides the outcome of a command from its exit code and output.
// A zero exit code succeeds unless success patterns are registered and none
// of them matches. Anything else is benign when a failure-is-ok pattern
// matches the output.
func Classify(spec CommandSpec, exitCode int, output string) (Outcome, string) {
	if exitCode == 0 {
		if len(spec.Success) == 0 {
			return OutcomeSucceeded, strings.TrimSpace(output)
		}
		for _, re := range spec.Success {
			m := re.FindStringSubmatch(output)
			if m == nil {
				continue
			}
			if len(m) > 1 {
				return OutcomeSucceeded, strings.TrimSpace(m[1])
			}
			return OutcomeSucceeded, strings.TrimSpace(m[0])
		}
	}
	for _, re := range spec.FailureOK {
		if re.MatchString(output) {
			return OutcomeBenign, ""
		}
	}
	return OutcomeFailed, ""
}
