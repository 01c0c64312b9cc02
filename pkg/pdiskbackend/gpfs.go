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

const mmclone = "/usr/lpp/mmfs/bin/mmclone"

var gpfsRegistry = newRegistry(BackendGPFS, registryDef{
	actions: map[Action][]string{
		ActionCheck:    {"check"},
		ActionCreate:   {"create", "chown"},
		ActionDelete:   {"delete"},
		ActionGetTurl:  {"getturl"},
		ActionMap:      {},
		ActionUnmap:    {},
		ActionRebase:   {"redirect"},
		ActionSize:     {"size"},
		ActionSnapshot: {"snap", "clone", "chown_copy"},
	},
	commands: []CommandSpec{
		command("check", "/usr/bin/test", "-f", "%%LOGVOL_PATH%%"),
		command("create", "/bin/dd", "if=/dev/zero", "of=%%LOGVOL_PATH%%", "bs=1024", "count=%%SIZE_KB%%"),
		command("chown", "/bin/chown", "%%OWNER%%", "%%LOGVOL_PATH%%"),
		command("delete", "/bin/rm", "-f", "%%LOGVOL_PATH%%"),
		command("getturl", "/bin/echo", "file://%%LOGVOL_PATH%%").
			succeeds(`(.*://.*)`),
		command("size", "/usr/bin/stat", "-c", "%s", "%%LOGVOL_PATH%%").
			succeeds(`^(\d+)`),
		// a volume already turned into a clone parent is read-only
		command("snap", mmclone, "snap", "%%LOGVOL_PATH%%").
			tolerates(`Read-only file system`),
		command("clone", mmclone, "copy", "%%LOGVOL_PATH%%", "%%NEW_LOGVOL_PATH%%"),
		command("chown_copy", "/bin/chown", "%%OWNER%%", "%%NEW_LOGVOL_PATH%%"),
		command("redirect", mmclone, "redirect", "%%LOGVOL_PATH%%"),
	},
	needsSize:      []Action{ActionCreate},
	needsNewVolume: []Action{ActionSnapshot},
})

// GPFSBackend is a file backend whose snapshots are GPFS file clones.
type GPFSBackend struct {
	backend
}

func NewGPFSBackend(proxy string, cfg BackendConfig) (*GPFSBackend, error) {
	if err := requireKeys(proxy, cfg, "volume_name"); err != nil {
		return nil, err
	}
	return &GPFSBackend{backend: newBackend(BackendGPFS, proxy, cfg, gpfsRegistry)}, nil
}

func (b *GPFSBackend) Detokenize(tokens []string, vol Volume) []string {
	return detokenizeFilePaths(&b.backend, tokens, vol)
}
