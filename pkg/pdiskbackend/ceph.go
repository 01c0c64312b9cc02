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

const (
	tokenIdentity = "IDENTITY"

	rbd = "/usr/bin/rbd"
)

var cephRegistry = newRegistry(BackendCeph, registryDef{
	actions: map[Action][]string{
		ActionCheck:    {"check"},
		ActionCreate:   {"create"},
		ActionDelete:   {"delete"},
		ActionGetTurl:  {"check"},
		ActionMap:      {"map"},
		ActionUnmap:    {"unmap"},
		ActionRebase:   {"flatten"},
		ActionSize:     {"size"},
		ActionSnapshot: {"snapshot", "protect", "clone"},
	},
	commands: []CommandSpec{
		command("check", rbd, "info", "%%UUID%%", "--pool", "%%VOLUME_NAME%%", "--id", "%%IDENTITY%%"),
		command("create", rbd, "create", "%%UUID%%", "--size", "%%SIZE%%", "--pool", "%%VOLUME_NAME%%", "--id", "%%IDENTITY%%"),
		command("delete", rbd, "rm", "%%UUID%%", "--pool", "%%VOLUME_NAME%%", "--id", "%%IDENTITY%%"),
		command("map", rbd, "map", "%%UUID%%", "--pool", "%%VOLUME_NAME%%", "--id", "%%IDENTITY%%"),
		command("unmap", rbd, "unmap", "/dev/rbd/%%VOLUME_NAME%%/%%UUID%%", "--id", "%%IDENTITY%%"),
		command("flatten", rbd, "flatten", "%%VOLUME_NAME%%/%%UUID%%", "--id", "%%IDENTITY%%"),
		command("size", rbd, "info", "%%VOLUME_NAME%%/%%UUID%%", "--format", "json", "--id", "%%IDENTITY%%").
			succeeds(`"size":\s*(\d+)`),
		command("snapshot", rbd, "snap", "create", "%%VOLUME_NAME%%/%%UUID%%@%%SNAP_NAME%%", "--id", "%%IDENTITY%%").
			tolerates(`File exists`),
		// protecting twice reports EBUSY
		command("protect", rbd, "snap", "protect", "%%VOLUME_NAME%%/%%UUID%%@%%SNAP_NAME%%", "--id", "%%IDENTITY%%").
			tolerates(`Device or resource busy`),
		command("clone", rbd, "clone", "%%VOLUME_NAME%%/%%UUID%%@%%SNAP_NAME%%", "%%VOLUME_NAME%%/%%NEW_UUID%%",
			"--id", "%%IDENTITY%%"),
	},
	results: map[Action]string{
		ActionGetTurl: "rbd:%%VOLUME_NAME%%/%%UUID%%",
	},
	needsSize:      []Action{ActionCreate},
	needsNewVolume: []Action{ActionSnapshot},
})

// CephBackend keeps volumes as RBD images of the pool volume_name.
type CephBackend struct {
	backend
}

func NewCephBackend(proxy string, cfg BackendConfig) (*CephBackend, error) {
	if err := requireKeys(proxy, cfg, "volume_name"); err != nil {
		return nil, err
	}
	return &CephBackend{backend: newBackend(BackendCeph, proxy, cfg, cephRegistry)}, nil
}

func (b *CephBackend) Detokenize(tokens []string, vol Volume) []string {
	return Detokenize(tokens, mergeTokens(b.commonTokens(vol), map[string]string{
		tokenIdentity: b.cfg.Identity,
	}))
}
