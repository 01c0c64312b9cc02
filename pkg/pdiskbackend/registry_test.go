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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var registries = []*ActionRegistry{
	fileRegistry,
	gpfsRegistry,
	lvmRegistry,
	netapp7ModeRegistry,
	netappClusterRegistry,
	cephRegistry,
}

func TestRegistryCommands(t *testing.T) {
	a := assert.New(t)

	specs, err := fileRegistry.Commands(ActionCreate)
	a.NoError(err)
	if a.Len(specs, 2) {
		a.Equal("create", specs[0].Name)
		a.Equal("chown", specs[1].Name)
	}

	specs, err = fileRegistry.Commands(ActionMap)
	a.NoError(err)
	a.Empty(specs)
	a.True(fileRegistry.Supports(ActionMap))

	_, err = netappClusterRegistry.Commands(ActionSize)
	var unsupported *UnsupportedActionError
	if a.True(errors.As(err, &unsupported)) {
		a.Equal(BackendNetAppCluster, unsupported.Backend)
		a.Equal("size", unsupported.Action)
		a.NotContains(unsupported.Supported, ActionSize)
	}
}

func TestRegistryUnknownActionIsEmpty(t *testing.T) {
	a := assert.New(t)
	a.Empty(lvmRegistry.CommandNames(Action("resize")))
	a.False(lvmRegistry.Supports(Action("resize")))
	a.Equal([]string{"dmremove", "remove"}, lvmRegistry.CommandNames(ActionDelete))
}

func TestRegistryReturnsCopies(t *testing.T) {
	specs, err := fileRegistry.Commands(ActionDelete)
	require.NoError(t, err)
	specs[0].Args[0] = "/bin/false"

	again, err := fileRegistry.Commands(ActionDelete)
	require.NoError(t, err)
	assert.Equal(t, "/bin/rm", again[0].Args[0])

	names := fileRegistry.CommandNames(ActionCreate)
	names[0] = "delete"
	assert.Equal(t, []string{"create", "chown"}, fileRegistry.CommandNames(ActionCreate))
}

func TestRegistriesAreComplete(t *testing.T) {
	for _, r := range registries {
		for _, action := range r.Supported() {
			specs, err := r.Commands(action)
			assert.NoError(t, err, "%s %s", r.Backend(), action)
			for _, spec := range specs {
				assert.NotEmpty(t, spec.Args, "%s %s", r.Backend(), spec.Name)
			}
		}
		for _, action := range []Action{ActionCheck, ActionCreate, ActionDelete, ActionGetTurl, ActionMap, ActionUnmap, ActionSnapshot} {
			assert.True(t, r.Supports(action), "%s misses %s", r.Backend(), action)
		}
		assert.True(t, r.NeedsSize(ActionCreate), "%s create", r.Backend())
		assert.True(t, r.NeedsNewVolume(ActionSnapshot), "%s snapshot", r.Backend())
	}
}

func TestRegistryResultTemplate(t *testing.T) {
	_, ok := fileRegistry.ResultTemplate(ActionGetTurl)
	assert.False(t, ok)

	tmpl, ok := netapp7ModeRegistry.ResultTemplate(ActionGetTurl)
	assert.True(t, ok)
	assert.Equal(t, netappTurl, tmpl)
}

func TestNewRegistryRejectsUndefinedCommand(t *testing.T) {
	assert.Panics(t, func() {
		newRegistry(BackendFile, registryDef{
			actions: map[Action][]string{ActionCheck: {"missing"}},
		})
	})
	assert.Panics(t, func() {
		newRegistry(BackendFile, registryDef{
			commands: []CommandSpec{command("a", "true"), command("a", "false")},
		})
	})
}

func TestParseAction(t *testing.T) {
	a := assert.New(t)
	for _, action := range Actions {
		parsed, err := ParseAction(string(action))
		a.NoError(err)
		a.Equal(action, parsed)
	}

	parsed, err := ParseAction(" GetTurl ")
	a.NoError(err)
	a.Equal(ActionGetTurl, parsed)

	_, err = ParseAction("resize")
	var unsupported *UnsupportedActionError
	a.True(errors.As(err, &unsupported))
	a.Contains(err.Error(), "unknown action \"resize\"")
}
