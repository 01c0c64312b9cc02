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
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/stratuslab/pdisk/utils/log"
)

// volume ids end up in paths and remote shell lines
var volumeIDRegexp = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// State of a LUN action invocation.
type State int

const (
	StatePending State = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// Request carries the optional arguments of an action.
type Request struct {
	// SizeMB is the volume size in megabytes.
	SizeMB      int64
	NewVolumeID string
}

// LUN runs the actions of one logical volume against a backend. The
// backend is shared, the LUN does not own it.
type LUN struct {
	ID       string
	backend  Backend
	executor *CommandExecutor

	state State
	step  int
}

func NewLUN(id string, backend Backend, executor *CommandExecutor) *LUN {
	return &LUN{
		ID:       id,
		backend:  backend,
		executor: executor,
		state:    StatePending,
	}
}

func (l *LUN) Backend() Backend {
	return l.backend
}

// State returns the state of the last invocation and the step it reached.
func (l *LUN) State() (State, int) {
	return l.state, l.step
}

// Execute runs the command sequence of action. Steps run strictly in
// order and the first failed or aborted one stops the sequence. The result
// of the last executed step is returned, its Value replaced by the rendered
// result template when the action declares one. An action without commands
// succeeds with an empty result.
func (l *LUN) Execute(ctx context.Context, action Action, req Request) (*Result, error) {
	l.state, l.step = StatePending, 0
	registry := l.backend.Registry()

	if err := l.Validate(action, req); err != nil {
		l.state = StateFailed
		return nil, err
	}
	specs, _ := registry.Commands(action)

	vol := Volume{ID: l.ID, NewID: req.NewVolumeID}
	values := sizeTokens(req.SizeMB)

	if len(specs) == 0 {
		log.Infof("%s: %s on %s has nothing to do", l.backend.Type(), action, l.ID)
	} else {
		log.Infof("%s: %s on %s (%d steps, %s)", l.backend.Type(), action, l.ID, len(specs), l.backend.Mode())
	}

	// a started sequence always runs to its end or to its first failing step
	if err := ctx.Err(); err != nil && len(specs) > 0 {
		l.state = StateAborted
		aborted := &Result{Command: specs[0].Name, Outcome: OutcomeAborted, Err: err, ExitCode: -1}
		return aborted, &CommandExecutionError{Action: action, Step: 0, Result: aborted}
	}

	res := &Result{Outcome: OutcomeSucceeded}
	l.state = StateRunning
	for i, spec := range specs {
		l.step = i
		args := Detokenize(l.backend.Detokenize(spec.Args, vol), values)
		if names := unresolved(args); len(names) > 0 {
			log.Warnf("%s: command %s still holds placeholders %s", l.backend.Type(), spec.Name, strings.Join(names, ", "))
		}

		res = l.executor.Run(l.backend.Type(), spec, l.backend.Mode().Command(args))
		switch res.Outcome {
		case OutcomeFailed:
			l.state = StateFailed
			return res, &CommandExecutionError{Action: action, Step: i, Result: res}
		case OutcomeAborted:
			l.state = StateAborted
			return res, &CommandExecutionError{Action: action, Step: i, Result: res}
		}
		if spec.Capture != "" && res.Outcome == OutcomeSucceeded {
			values[spec.Capture] = res.Value
		}
	}

	if tmpl, ok := registry.ResultTemplate(action); ok {
		res.Value = Detokenize(l.backend.Detokenize([]string{tmpl}, vol), values)[0]
	}
	l.state = StateSucceeded
	log.Infof("%s: %s on %s succeeded", l.backend.Type(), action, l.ID)
	return res, nil
}

// Validate checks that action is supported by the backend and that req
// carries the arguments it needs, without running anything.
func (l *LUN) Validate(action Action, req Request) error {
	registry := l.backend.Registry()
	if _, err := registry.Commands(action); err != nil {
		return err
	}
	if !volumeIDRegexp.MatchString(l.ID) {
		return &InvalidRequestError{Action: action, Reason: fmt.Sprintf("invalid volume id %q", l.ID)}
	}
	if registry.NeedsSize(action) && req.SizeMB <= 0 {
		return &InvalidRequestError{Action: action, Reason: "a positive size in MB is required"}
	}
	if registry.NeedsNewVolume(action) {
		if req.NewVolumeID == "" {
			return &InvalidRequestError{Action: action, Reason: "a new volume id is required"}
		}
		if !volumeIDRegexp.MatchString(req.NewVolumeID) {
			return &InvalidRequestError{Action: action, Reason: fmt.Sprintf("invalid new volume id %q", req.NewVolumeID)}
		}
		if req.NewVolumeID == l.ID {
			return &InvalidRequestError{Action: action, Reason: "the new volume id must differ from the volume id"}
		}
	}
	return nil
}

// sizeTokens are resolved by the caller, the adapters know nothing about sizes.
func sizeTokens(sizeMB int64) map[string]string {
	values := map[string]string{}
	if sizeMB <= 0 {
		return values
	}
	values[tokenSize] = strconv.FormatInt(sizeMB, 10)
	values[tokenSizeKB] = strconv.FormatInt(sizeMB*1024, 10)
	values[tokenSizeGB] = strconv.FormatInt((sizeMB+1023)/1024, 10)
	return values
}
