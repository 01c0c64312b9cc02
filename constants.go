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

package pdisk

const (
	// Version project
	Version = "beta"
	// ProgramName is used as syslog tag and cobra command name.
	ProgramName = "pdisk-backend"

	// DefaultConfigFile is read when neither --config nor PDISK_CONFIG is given.
	DefaultConfigFile = "/etc/stratuslab/pdisk-backend.cfg"
	// ConfigEnv overrides DefaultConfigFile.
	ConfigEnv = "PDISK_CONFIG"
	// MainSection holds logging and default management credentials.
	MainSection = "main"

	// ExitCodePdiskOpFailed is returned for every failed persistent disk operation.
	ExitCodePdiskOpFailed = 2
	// FailurePrefix starts every diagnostic written to stderr.
	FailurePrefix = "Persistent disk operation failed:\n"

	// DefaultISCSIPort iSCSI target portal
	DefaultISCSIPort = 3260
	DefaultSSHPort   = 22
	// DefaultTargetPrefix is the iqn prefix of tgt targets exported by the LVM backend.
	DefaultTargetPrefix = "iqn.2011-01.eu.stratuslab"
	// DefaultFileOwner owner:group applied to file backed volumes.
	DefaultFileOwner      = "oneadmin:cloud"
	DefaultLunOS          = "linux"
	DefaultSnapshotPrefix = "pdisk_clone"
	DefaultCephIdentity   = "cloud"

	// DefaultListenAddr used by the serve subcommand
	DefaultListenAddr = ":8089"
)
