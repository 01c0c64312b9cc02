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
	"fmt"
	"regexp"
)

// CommandSpec is an immutable command template owned by a backend type.
type CommandSpec struct {
	Name string
	Args []string
	// Success patterns, when present, must match the output of a zero exit code.
	Success []*regexp.Regexp
	// FailureOK patterns turn a failing command into a benign one.
	FailureOK []*regexp.Regexp
	// Capture names the token receiving the first group of the matching
	// success pattern.
	Capture string
}

func command(name string, args ...string) CommandSpec {
	return CommandSpec{Name: name, Args: args}
}

func (c CommandSpec) succeeds(patterns ...string) CommandSpec {
	c.Success = append(append([]*regexp.Regexp{}, c.Success...), compile(patterns)...)
	return c
}

func (c CommandSpec) tolerates(patterns ...string) CommandSpec {
	c.FailureOK = append(append([]*regexp.Regexp{}, c.FailureOK...), compile(patterns)...)
	return c
}

func (c CommandSpec) captures(token string) CommandSpec {
	c.Capture = token
	return c
}

func (c CommandSpec) clone() CommandSpec {
	c.Args = append([]string{}, c.Args...)
	c.Success = append([]*regexp.Regexp{}, c.Success...)
	c.FailureOK = append([]*regexp.Regexp{}, c.FailureOK...)
	return c
}

func compile(patterns []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		res = append(res, regexp.MustCompile(p))
	}
	return res
}

// registryDef is the declarative table a backend type is built from.
type registryDef struct {
	// actions maps an action to its ordered command names, an empty list is a
	// no-op and a missing action is unsupported
	actions  map[Action][]string
	commands []CommandSpec
	// results are rendered once the whole sequence succeeded
	results        map[Action]string
	needsSize      []Action
	needsNewVolume []Action
}

// ActionRegistry maps the actions of one backend type to command sequences.
// It is built once and never modified afterwards.
type ActionRegistry struct {
	backend        BackendType
	actions        map[Action][]string
	commands       map[string]CommandSpec
	results        map[Action]string
	needsSize      map[Action]bool
	needsNewVolume map[Action]bool
}

// newRegistry panics on a table referring to an undefined command, the
// tables are package level literals.
func newRegistry(backend BackendType, def registryDef) *ActionRegistry {
	r := &ActionRegistry{
		backend:        backend,
		actions:        make(map[Action][]string, len(def.actions)),
		commands:       make(map[string]CommandSpec, len(def.commands)),
		results:        make(map[Action]string, len(def.results)),
		needsSize:      make(map[Action]bool),
		needsNewVolume: make(map[Action]bool),
	}
	for _, c := range def.commands {
		if _, ok := r.commands[c.Name]; ok {
			panic(fmt.Sprintf("%s: duplicate command %q", backend, c.Name))
		}
		r.commands[c.Name] = c.clone()
	}
	for action, names := range def.actions {
		for _, name := range names {
			if _, ok := r.commands[name]; !ok {
				panic(fmt.Sprintf("%s: action %s refers to undefined command %q", backend, action, name))
			}
		}
		r.actions[action] = append([]string{}, names...)
	}
	for action, tmpl := range def.results {
		if _, ok := r.actions[action]; !ok {
			panic(fmt.Sprintf("%s: result template for unsupported action %s", backend, action))
		}
		r.results[action] = tmpl
	}
	for _, a := range def.needsSize {
		r.needsSize[a] = true
	}
	for _, a := range def.needsNewVolume {
		r.needsNewVolume[a] = true
	}
	return r
}

// Backend returns the backend type the registry belongs to.
func (r *ActionRegistry) Backend() BackendType {
	return r.backend
}

// Supports reports whether the backend type defines action, possibly as a no-op.
func (r *ActionRegistry) Supports(action Action) bool {
	_, ok := r.actions[action]
	return ok
}

// Supported lists the defined actions in name order.
func (r *ActionRegistry) Supported() []Action {
	actions := make([]Action, 0, len(r.actions))
	for a := range r.actions {
		actions = append(actions, a)
	}
	sortActions(actions)
	return actions
}

// CommandNames returns the ordered command names of action. An unknown
// action yields an empty list.
func (r *ActionRegistry) CommandNames(action Action) []string {
	return append([]string{}, r.actions[action]...)
}

// Commands resolves action to copies of its command specs.
func (r *ActionRegistry) Commands(action Action) ([]CommandSpec, error) {
	names, ok := r.actions[action]
	if !ok {
		return nil, &UnsupportedActionError{Action: string(action), Backend: r.backend, Supported: r.Supported()}
	}
	specs := make([]CommandSpec, 0, len(names))
	for _, name := range names {
		specs = append(specs, r.commands[name].clone())
	}
	return specs, nil
}

// Command returns a copy of the named command spec.
func (r *ActionRegistry) Command(name string) (CommandSpec, bool) {
	c, ok := r.commands[name]
	if !ok {
		return CommandSpec{}, false
	}
	return c.clone(), true
}

// ResultTemplate returns the template rendered after action succeeded.
func (r *ActionRegistry) ResultTemplate(action Action) (string, bool) {
	tmpl, ok := r.results[action]
	return tmpl, ok
}

func (r *ActionRegistry) NeedsSize(action Action) bool {
	return r.needsSize[action]
}

func (r *ActionRegistry) NeedsNewVolume(action Action) bool {
	return r.needsNewVolume[action]
}
