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
	"sort"
	"strings"
)

// Action is a logical volume operation requested by the caller.
type Action string

const (
	ActionCheck    Action = "check"
	ActionCreate   Action = "create"
	ActionDelete   Action = "delete"
	ActionGetTurl  Action = "getturl"
	ActionMap      Action = "map"
	ActionUnmap    Action = "unmap"
	ActionRebase   Action = "rebase"
	ActionSize     Action = "size"
	ActionSnapshot Action = "snapshot"
)

// Actions lists every action a backend may implement.
var Actions = []Action{
	ActionCheck,
	ActionCreate,
	ActionDelete,
	ActionGetTurl,
	ActionMap,
	ActionUnmap,
	ActionRebase,
	ActionSize,
	ActionSnapshot,
}

// ParseAction maps a command line action name to an Action.
func ParseAction(s string) (Action, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, a := range Actions {
		if string(a) == name {
			return a, nil
		}
	}
	return "", &UnsupportedActionError{Action: s, Supported: Actions}
}

func (a Action) String() string {
	return string(a)
}

func sortActions(actions []Action) {
	sort.Slice(actions, func(i, j int) bool {
		return actions[i] < actions[j]
	})
}

func joinActions(actions []Action) string {
	names := make([]string, 0, len(actions))
	for _, a := range actions {
		names = append(names, string(a))
	}
	return strings.Join(names, ", ")
}
