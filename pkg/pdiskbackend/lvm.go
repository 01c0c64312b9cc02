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
	tokenVGName       = "VG_NAME"
	tokenDMVolumePath = "DM_VOLUME_PATH"
	tokenTargetPrefix = "TARGET_PREFIX"

	// tgtConfigDir is included by the tgt daemon configuration of the
	// proxy, one file per exported volume.
	tgtConfigDir = "/etc/stratuslab/iscsi.d"
	tgtTarget    = "%%TARGET_PREFIX%%:%%UUID%%"
	tgtFile      = tgtConfigDir + "/%%UUID%%.conf"

	// writeTarget rewrites the target file and prints it back.
	writeTarget = `printf '<target %s>\n    backing-store %s\n</target>\n' "$1" "$2" > "$3" && cat "$3"`
)

const lvmCreated = `Logical volume "[^"]+" created`

var lvmRegistry = newRegistry(BackendLVM, registryDef{
	actions: map[Action][]string{
		ActionCheck:    {"check"},
		ActionCreate:   {"create"},
		ActionDelete:   {"dmremove", "remove"},
		ActionGetTurl:  {"check"},
		ActionMap:      {"add_target", "export_target"},
		ActionUnmap:    {"unexport_target", "remove_target"},
		ActionRebase:   {"create_new", "copy"},
		ActionSize:     {"size"},
		ActionSnapshot: {"snapshot"},
	},
	commands: []CommandSpec{
		command("check", "/usr/bin/test", "-b", "%%LOGVOL_PATH%%"),
		command("create", "/sbin/lvcreate", "-L", "%%SIZE%%M", "-n", "%%UUID%%", "%%VG_NAME%%").
			succeeds(lvmCreated),
		command("dmremove", "/sbin/dmsetup", "remove", "%%DM_VOLUME_PATH%%").
			tolerates(`No such device or address`, `not found`),
		command("remove", "/sbin/lvremove", "-f", "%%LOGVOL_PATH%%").
			succeeds(`Logical volume "[^"]+" successfully removed`),
		command("add_target", "/bin/sh", "-c", writeTarget, "add_target", tgtTarget, "%%LOGVOL_PATH%%", tgtFile).
			succeeds(`backing-store /\S+`),
		command("export_target", "/usr/sbin/tgt-admin", "--update", tgtTarget),
		command("unexport_target", "/usr/sbin/tgt-admin", "--delete", tgtTarget).
			tolerates(`can't find the target`, `not found`),
		command("remove_target", "/bin/rm", "-f", tgtFile),
		command("create_new", "/sbin/lvcreate", "-L", "%%SIZE%%M", "-n", "%%NEW_UUID%%", "%%VG_NAME%%").
			succeeds(lvmCreated),
		command("copy", "/bin/dd", "if=%%LOGVOL_PATH%%", "of=%%NEW_LOGVOL_PATH%%", "bs=1M").
			succeeds(`\d+ bytes .* copied`),
		command("size", "/sbin/lvs", "-o", "lv_size", "--noheadings", "--units", "b", "--nosuffix", "%%LOGVOL_PATH%%").
			succeeds(`(\d+)`),
		command("snapshot", "/sbin/lvcreate", "--snapshot", "-p", "rw", "--size", "%%SIZE%%M",
			"-n", "%%NEW_UUID%%", "%%LOGVOL_PATH%%").
			succeeds(lvmCreated),
	},
	results: map[Action]string{
		ActionGetTurl: "iscsi://%%ISCSI_PROXY%%:%%ISCSI_PORT%%/%%TARGET_PREFIX%%:%%UUID%%:1",
	},
	needsSize:      []Action{ActionCreate, ActionRebase, ActionSnapshot},
	needsNewVolume: []Action{ActionRebase, ActionSnapshot},
})

// LVMBackend keeps volumes as logical volumes of the volume group
// volume_name (e.g. /dev/vg.pdisk) exported through tgt.
type LVMBackend struct {
	backend
}

func NewLVMBackend(proxy string, cfg BackendConfig) (*LVMBackend, error) {
	if err := requireKeys(proxy, cfg, "volume_name"); err != nil {
		return nil, err
	}
	return &LVMBackend{backend: newBackend(BackendLVM, proxy, cfg, lvmRegistry)}, nil
}

func (b *LVMBackend) Detokenize(tokens []string, vol Volume) []string {
	vg := path.Base(b.cfg.VolumeName)
	values := map[string]string{
		tokenLogvolPath:   path.Join(b.cfg.VolumeName, vol.ID),
		tokenVGName:       vg,
		tokenDMVolumePath: path.Join("/dev/mapper", dmEscape(vg)+"-"+dmEscape(vol.ID)),
		tokenTargetPrefix: b.cfg.TargetPrefix,
	}
	if vol.NewID != "" {
		values[tokenNewLogvolPath] = path.Join(b.cfg.VolumeName, vol.NewID)
	}
	return Detokenize(tokens, mergeTokens(b.commonTokens(vol), values))
}

// dmEscape doubles the dashes the device mapper uses as vg/lv separator.
func dmEscape(s string) string {
	return strings.ReplaceAll(s, "-", "--")
}
