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
	"strings"
)

// BackendType names a storage technology.
type BackendType string

const (
	BackendLVM  BackendType = "lvm"
	BackendCeph BackendType = "ceph"
	BackendFile BackendType = "file"
	BackendGPFS BackendType = "gpfs"
	// BackendNetApp is the historical name of BackendNetApp7Mode.
	BackendNetApp        BackendType = "netapp"
	BackendNetApp7Mode   BackendType = "netapp-7mode"
	BackendNetAppCluster BackendType = "netapp-cluster"
)

// SupportedBackends is the accepted set of backend type strings.
var SupportedBackends = []BackendType{
	BackendLVM,
	BackendCeph,
	BackendFile,
	BackendGPFS,
	BackendNetApp,
	BackendNetApp7Mode,
	BackendNetAppCluster,
}

type constructor func(proxy string, cfg BackendConfig) (Backend, error)

var constructors = map[BackendType]constructor{
	BackendLVM: func(proxy string, cfg BackendConfig) (Backend, error) {
		return NewLVMBackend(proxy, cfg)
	},
	BackendCeph: func(proxy string, cfg BackendConfig) (Backend, error) {
		return NewCephBackend(proxy, cfg)
	},
	BackendFile: func(proxy string, cfg BackendConfig) (Backend, error) {
		return NewFileBackend(proxy, cfg)
	},
	BackendGPFS: func(proxy string, cfg BackendConfig) (Backend, error) {
		return NewGPFSBackend(proxy, cfg)
	},
	BackendNetApp: func(proxy string, cfg BackendConfig) (Backend, error) {
		return NewNetApp7ModeBackend(proxy, cfg)
	},
	BackendNetApp7Mode: func(proxy string, cfg BackendConfig) (Backend, error) {
		return NewNetApp7ModeBackend(proxy, cfg)
	},
	BackendNetAppCluster: func(proxy string, cfg BackendConfig) (Backend, error) {
		return NewNetAppClusterBackend(proxy, cfg)
	},
}

func (t BackendType) String() string {
	return string(t)
}

// ParseBackendType matches s case-insensitively against SupportedBackends.
func ParseBackendType(s string) (BackendType, error) {
	name := BackendType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := constructors[name]; ok {
		return name, nil
	}
	return "", &ConfigurationError{
		Key:    "type",
		Reason: fmt.Sprintf("unsupported backend type %q, supported types: %s", s, supportedBackendList()),
	}
}

// NewBackend builds the backend configured for proxy. cfg is completed with
// defaults, its Type selects the adapter.
func NewBackend(proxy string, cfg BackendConfig) (Backend, error) {
	typ, err := ParseBackendType(cfg.Type)
	if err != nil {
		err.(*ConfigurationError).Section = proxy
		return nil, err
	}
	b, err := constructors[typ](proxy, cfg.WithDefaults())
	if err != nil {
		return nil, err
	}
	return b, nil
}

func supportedBackendList() string {
	names := make([]string, 0, len(SupportedBackends))
	for _, t := range SupportedBackends {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func requireKeys(proxy string, cfg BackendConfig, keys ...string) error {
	for _, key := range keys {
		var value string
		switch key {
		case "volume_name":
			value = cfg.VolumeName
		case "initiator_group":
			value = cfg.InitiatorGroup
		case "vserver":
			value = cfg.Vserver
		case "mgt_user_name":
			value = cfg.MgtUserName
		case "mgt_user_private_key":
			value = cfg.MgtUserPrivateKey
		default:
			panic("requireKeys: unknown key " + key)
		}
		if strings.TrimSpace(value) == "" {
			return &ConfigurationError{Section: proxy, Key: key, Reason: "missing required parameter"}
		}
	}
	return nil
}
