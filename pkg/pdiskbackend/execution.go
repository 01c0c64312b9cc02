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
	"strconv"
	"strings"
)

// ExecutionMode decides where backend commands run. It is either
// LocalExecution or RemoteExecution and is fixed when the backend is built.
type ExecutionMode interface {
	// Prefix is prepended to every command, empty for local execution.
	Prefix() []string
	// Command turns a detokenized argument list into the argv to execute.
	Command(args []string) []string
	String() string
}

// LocalExecution runs commands on this host.
type LocalExecution struct{}

var _ ExecutionMode = LocalExecution{}

func (LocalExecution) Prefix() []string {
	return []string{}
}

func (LocalExecution) Command(args []string) []string {
	return append([]string{}, args...)
}

func (LocalExecution) String() string {
	return "local"
}

// RemoteExecution runs commands over ssh on the proxy host with the
// management credentials.
type RemoteExecution struct {
	Host       string
	User       string
	PrivateKey string
	Port       int
}

var _ ExecutionMode = RemoteExecution{}

func (r RemoteExecution) Prefix() []string {
	prefix := []string{"ssh", "-x", "-o", "StrictHostKeyChecking=no", "-o", "BatchMode=yes"}
	if r.Port > 0 {
		prefix = append(prefix, "-p", strconv.Itoa(r.Port))
	}
	return append(prefix, "-i", r.PrivateKey, fmt.Sprintf("%s@%s", r.User, r.Host))
}

// Command quotes each argument, ssh hands the remote side a single shell line.
func (r RemoteExecution) Command(args []string) []string {
	argv := r.Prefix()
	for _, a := range args {
		argv = append(argv, shellQuote(a))
	}
	return argv
}

func (r RemoteExecution) String() string {
	return fmt.Sprintf("ssh %s@%s", r.User, r.Host)
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, c := range s {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || strings.ContainsRune("-_./=:@%,+", c)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// executionMode picks remote execution when both management user and key are set.
func executionMode(proxy string, cfg BackendConfig) ExecutionMode {
	if cfg.MgtUserName != "" && cfg.MgtUserPrivateKey != "" {
		return RemoteExecution{
			Host:       proxy,
			User:       cfg.MgtUserName,
			PrivateKey: cfg.MgtUserPrivateKey,
			Port:       cfg.SSHPort,
		}
	}
	return LocalExecution{}
}
