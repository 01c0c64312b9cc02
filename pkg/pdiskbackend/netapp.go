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
	tokenName           = "NAME"
	tokenNewName        = "NEW_NAME"
	tokenRelName        = "REL_NAME"
	tokenNewRelName     = "NEW_REL_NAME"
	tokenFlexvol        = "FLEXVOL"
	tokenInitiatorGroup = "INITIATORGRP"
	tokenLunOS          = "LUNOS"
	tokenVserver        = "VSERVER"

	netappTurl = "iscsi://%%ISCSI_PROXY%%:%%ISCSI_PORT%%/%%TARGET_IQN%%:%%LUN_ID%%"
)

var netapp7ModeRegistry = newRegistry(BackendNetApp7Mode, registryDef{
	actions: map[Action][]string{
		ActionCheck:    {"check"},
		ActionCreate:   {"create"},
		ActionDelete:   {"unmap", "delete"},
		ActionGetTurl:  {"get_target", "get_lun"},
		ActionMap:      {"map"},
		ActionUnmap:    {"unmap"},
		ActionRebase:   {"split"},
		ActionSnapshot: {"snapshot", "clone"},
	},
	commands: []CommandSpec{
		command("check", "lun", "show", "%%NAME%%"),
		command("create", "lun", "create", "-s", "%%SIZE%%m", "-t", "%%LUNOS%%", "%%NAME%%"),
		command("delete", "lun", "destroy", "%%NAME%%"),
		command("map", "lun", "map", "-f", "%%NAME%%", "%%INITIATORGRP%%"),
		command("unmap", "lun", "unmap", "%%NAME%%", "%%INITIATORGRP%%").
			tolerates(`(?i)not mapped`),
		command("get_target", "iscsi", "nodename").
			succeeds(`iSCSI target nodename:\s*(\S+)`).
			captures(tokenTargetIQN),
		// LUN path  Mapped to  LUN ID  Protocol
		command("get_lun", "lun", "show", "-m", "%%NAME%%").
			succeeds(`(?m)^\S+\s+\S+\s+(\d+)\s+\S+\s*$`).
			captures(tokenLunID),
		command("split", "lun", "clone", "split", "start", "%%NAME%%"),
		command("snapshot", "snap", "create", "%%FLEXVOL%%", "%%SNAP_NAME%%").
			tolerates(`(?i)already exists`),
		command("clone", "lun", "clone", "create", "%%NEW_NAME%%", "-b", "%%NAME%%", "%%SNAP_NAME%%"),
	},
	results: map[Action]string{
		ActionGetTurl: netappTurl,
	},
	needsSize:      []Action{ActionCreate},
	needsNewVolume: []Action{ActionSnapshot},
})

var netappClusterRegistry = newRegistry(BackendNetAppCluster, registryDef{
	actions: map[Action][]string{
		ActionCheck:    {"check"},
		ActionCreate:   {"create"},
		ActionDelete:   {"unmap", "delete"},
		ActionGetTurl:  {"get_target", "get_lun"},
		ActionMap:      {"map"},
		ActionUnmap:    {"unmap"},
		ActionSnapshot: {"snapshot", "clone"},
	},
	commands: []CommandSpec{
		command("check", "lun", "show", "-vserver", "%%VSERVER%%", "-path", "%%NAME%%"),
		command("create", "lun", "create", "-vserver", "%%VSERVER%%", "-path", "%%NAME%%",
			"-size", "%%SIZE%%MB", "-ostype", "%%LUNOS%%"),
		command("delete", "lun", "delete", "-vserver", "%%VSERVER%%", "-path", "%%NAME%%"),
		command("map", "lun", "map", "-vserver", "%%VSERVER%%", "-path", "%%NAME%%", "-igroup", "%%INITIATORGRP%%"),
		command("unmap", "lun", "unmap", "-vserver", "%%VSERVER%%", "-path", "%%NAME%%", "-igroup", "%%INITIATORGRP%%").
			tolerates(`(?i)not mapped`, `(?i)entry doesn't exist`),
		// vserver  target-name
		command("get_target", "vserver", "iscsi", "show", "-vserver", "%%VSERVER%%", "-fields", "target-name").
			succeeds(`(?m)^\S+\s+(iqn\.\S+)\s*$`).
			captures(tokenTargetIQN),
		// vserver  path  igroup  lun-id
		command("get_lun", "lun", "mapped", "show", "-vserver", "%%VSERVER%%", "-path", "%%NAME%%",
			"-igroup", "%%INITIATORGRP%%", "-fields", "lun-id").
			succeeds(`(?m)^\S+\s+\S+\s+\S+\s+(\d+)\s*$`).
			captures(tokenLunID),
		command("snapshot", "volume", "snapshot", "create", "-vserver", "%%VSERVER%%",
			"-volume", "%%FLEXVOL%%", "-snapshot", "%%SNAP_NAME%%").
			tolerates(`(?i)already exists`),
		command("clone", "volume", "file", "clone", "create", "-vserver", "%%VSERVER%%",
			"-volume", "%%FLEXVOL%%", "-source-path", "%%REL_NAME%%", "-snapshot-name", "%%SNAP_NAME%%",
			"-destination-path", "%%NEW_REL_NAME%%"),
	},
	results: map[Action]string{
		ActionGetTurl: netappTurl,
	},
	needsSize:      []Action{ActionCreate},
	needsNewVolume: []Action{ActionSnapshot},
})

// NetAppBackend drives a NetApp filer over ssh, either in 7-Mode or in
// Cluster-Mode. The two modes only differ in their CLI syntax.
type NetAppBackend struct {
	backend
}

func NewNetApp7ModeBackend(proxy string, cfg BackendConfig) (*NetAppBackend, error) {
	if err := requireKeys(proxy, cfg, "volume_name", "initiator_group", "mgt_user_name", "mgt_user_private_key"); err != nil {
		return nil, err
	}
	return &NetAppBackend{backend: newBackend(BackendNetApp7Mode, proxy, cfg, netapp7ModeRegistry)}, nil
}

func NewNetAppClusterBackend(proxy string, cfg BackendConfig) (*NetAppBackend, error) {
	if err := requireKeys(proxy, cfg, "volume_name", "initiator_group", "vserver", "mgt_user_name", "mgt_user_private_key"); err != nil {
		return nil, err
	}
	return &NetAppBackend{backend: newBackend(BackendNetAppCluster, proxy, cfg, netappClusterRegistry)}, nil
}

// Detokenize names a LUN /vol/<volume>/<namespace>/<uuid>, the relative
// names are the same path inside the flexible volume.
func (b *NetAppBackend) Detokenize(tokens []string, vol Volume) []string {
	flexvol := path.Base(b.cfg.VolumeName)
	values := map[string]string{
		tokenName:           b.lunPath(b.cfg.VolumeName, vol.ID),
		tokenRelName:        b.lunPath("/", vol.ID),
		tokenFlexvol:        flexvol,
		tokenInitiatorGroup: b.cfg.InitiatorGroup,
		tokenLunOS:          b.cfg.LunOS,
		tokenVserver:        b.cfg.Vserver,
	}
	if vol.NewID != "" {
		values[tokenNewName] = b.lunPath(b.cfg.VolumeName, vol.NewID)
		values[tokenNewRelName] = b.lunPath("/", vol.NewID)
	}
	return Detokenize(tokens, mergeTokens(b.commonTokens(vol), values))
}

func (b *NetAppBackend) lunPath(root, id string) string {
	ns := strings.Trim(b.cfg.LunNamespace, "/")
	if ns == "" {
		return path.Join(root, id)
	}
	return path.Join(root, ns, id)
}
