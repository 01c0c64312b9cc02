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
	"strconv"

	"github.com/stratuslab/pdisk"
)

const (
	tokenUUID       = "UUID"
	tokenNewUUID    = "NEW_UUID"
	tokenVolumeName = "VOLUME_NAME"
	tokenISCSIProxy = "ISCSI_PROXY"
	tokenISCSIPort  = "ISCSI_PORT"
	tokenSize       = "SIZE"
	tokenSizeKB     = "SIZE_KB"
	tokenSizeGB     = "SIZE_GB"
	tokenSnapName   = "SNAP_NAME"
	tokenTargetIQN  = "TARGET_IQN"
	tokenLunID      = "LUN_ID"
)

// BackendConfig is the configuration section of one proxy. It is decoded
// once and never modified by a backend.
type BackendConfig struct {
	Type              string `mapstructure:"type"`
	VolumeName        string `mapstructure:"volume_name"`
	MgtUserName       string `mapstructure:"mgt_user_name"`
	MgtUserPrivateKey string `mapstructure:"mgt_user_private_key"`
	SSHPort           int    `mapstructure:"ssh_port"`
	InitiatorGroup    string `mapstructure:"initiator_group"`
	LunNamespace      string `mapstructure:"lun_namespace"`
	LunOS             string `mapstructure:"lun_os"`
	SnapshotPrefix    string `mapstructure:"volume_snapshot_prefix"`
	Vserver           string `mapstructure:"vserver"`
	Identity          string `mapstructure:"identity"`
	ISCSIPort         int    `mapstructure:"iscsi_port"`
	TargetPrefix      string `mapstructure:"iscsi_target_prefix"`
	FileOwner         string `mapstructure:"file_owner"`
}

// WithDefaults fills unset optional entries.
func (c BackendConfig) WithDefaults() BackendConfig {
	if c.ISCSIPort == 0 {
		c.ISCSIPort = pdisk.DefaultISCSIPort
	}
	if c.SSHPort == 0 {
		c.SSHPort = pdisk.DefaultSSHPort
	}
	if c.LunOS == "" {
		c.LunOS = pdisk.DefaultLunOS
	}
	if c.SnapshotPrefix == "" {
		c.SnapshotPrefix = pdisk.DefaultSnapshotPrefix
	}
	if c.Identity == "" {
		c.Identity = pdisk.DefaultCephIdentity
	}
	if c.TargetPrefix == "" {
		c.TargetPrefix = pdisk.DefaultTargetPrefix
	}
	if c.FileOwner == "" {
		c.FileOwner = pdisk.DefaultFileOwner
	}
	return c
}

// Volume identifies the volumes an action works on.
type Volume struct {
	ID string
	// NewID names the volume produced by snapshot and rebase.
	NewID string
}

// Backend adapts the logical actions to one storage technology.
type Backend interface {
	Type() BackendType
	// Proxy is the configuration section and ssh host of the backend.
	Proxy() string
	Config() BackendConfig
	Registry() *ActionRegistry
	Mode() ExecutionMode
	// CommandPrefix is empty for local execution, the ssh invocation otherwise.
	CommandPrefix() []string
	// Detokenize resolves the placeholders the backend knows about.
	Detokenize(tokens []string, vol Volume) []string
}

// backend holds what every adapter shares.
type backend struct {
	typ      BackendType
	proxy    string
	cfg      BackendConfig
	registry *ActionRegistry
	mode     ExecutionMode
}

func newBackend(typ BackendType, proxy string, cfg BackendConfig, registry *ActionRegistry) backend {
	return backend{
		typ:      typ,
		proxy:    proxy,
		cfg:      cfg,
		registry: registry,
		mode:     executionMode(proxy, cfg),
	}
}

func (b *backend) Type() BackendType {
	return b.typ
}

func (b *backend) Proxy() string {
	return b.proxy
}

func (b *backend) Config() BackendConfig {
	return b.cfg
}

func (b *backend) Registry() *ActionRegistry {
	return b.registry
}

func (b *backend) Mode() ExecutionMode {
	return b.mode
}

func (b *backend) CommandPrefix() []string {
	return b.mode.Prefix()
}

func (b *backend) Detokenize(tokens []string, vol Volume) []string {
	return Detokenize(tokens, b.commonTokens(vol))
}

func (b *backend) commonTokens(vol Volume) map[string]string {
	values := map[string]string{
		tokenUUID:       vol.ID,
		tokenVolumeName: b.cfg.VolumeName,
		tokenISCSIProxy: b.proxy,
		tokenISCSIPort:  strconv.Itoa(b.cfg.ISCSIPort),
	}
	if vol.NewID != "" {
		values[tokenNewUUID] = vol.NewID
		values[tokenSnapName] = b.cfg.SnapshotPrefix + "_" + vol.NewID
	}
	return values
}

func mergeTokens(maps ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
