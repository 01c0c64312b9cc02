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
	"path"
	"strings"
)

const (
	tokenLogvolPath    = "LOGVOL_PATH"
	tokenNewLogvolPath = "NEW_LOGVOL_PATH"
	tokenOwner         = "OWNER"
)

var fileRegistry = newRegistry(BackendFile, registryDef{
	actions: map[Action][]string{
		ActionCheck:    {"check"},
		ActionCreate:   {"create", "chown"},
		ActionDelete:   {"delete"},
		ActionGetTurl:  {"getturl"},
		ActionMap:      {},
		ActionUnmap:    {},
		ActionRebase:   {},
		ActionSize:     {"size"},
		ActionSnapshot: {"copy", "chown_copy"},
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
		command("copy", "/bin/cp", "--sparse=always", "%%LOGVOL_PATH%%", "%%NEW_LOGVOL_PATH%%"),
		command("chown_copy", "/bin/chown", "%%OWNER%%", "%%NEW_LOGVOL_PATH%%"),
	},
	needsSize:      []Action{ActionCreate},
	needsNewVolume: []Action{ActionSnapshot},
})

// FileBackend keeps every volume as a plain file under volume_name.
type FileBackend struct {
	backend
}

func NewFileBackend(proxy string, cfg BackendConfig) (*FileBackend, error) {
	if err := requireKeys(proxy, cfg, "volume_name"); err != nil {
		return nil, err
	}
	return &FileBackend{backend: newBackend(BackendFile, proxy, cfg, fileRegistry)}, nil
}

// Detokenize resolves the volume paths before the common tokens. A token
// holding the new volume path only gets that one resolved.
func (b *FileBackend) Detokenize(tokens []string, vol Volume) []string {
	return detokenizeFilePaths(&b.backend, tokens, vol)
}

func detokenizeFilePaths(b *backend, tokens []string, vol Volume) []string {
	out := make([]string, len(tokens))
	for i, token := range tokens {
		if strings.Contains(token, Placeholder(tokenNewLogvolPath)) {
			if vol.NewID != "" {
				token = strings.ReplaceAll(token, Placeholder(tokenNewLogvolPath), path.Join(b.cfg.VolumeName, vol.NewID))
			}
		} else if strings.Contains(token, Placeholder(tokenLogvolPath)) {
			token = strings.ReplaceAll(token, Placeholder(tokenLogvolPath), path.Join(b.cfg.VolumeName, vol.ID))
		}
		out[i] = token
	}
	return Detokenize(out, mergeTokens(b.commonTokens(vol), map[string]string{
		tokenOwner: b.cfg.FileOwner,
	}))
}
