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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalExecution(t *testing.T) {
	mode := LocalExecution{}
	assert.Empty(t, mode.Prefix())
	assert.Equal(t, []string{"/bin/rm", "-f", "/data/a b"}, mode.Command([]string{"/bin/rm", "-f", "/data/a b"}))
}

func TestRemoteExecution(t *testing.T) {
	mode := RemoteExecution{Host: "filer.example.org", User: "root", PrivateKey: "/root/.ssh/id_rsa", Port: 22}
	prefix := []string{"ssh", "-x", "-o", "StrictHostKeyChecking=no", "-o", "BatchMode=yes",
		"-p", "22", "-i", "/root/.ssh/id_rsa", "root@filer.example.org"}

	a := assert.New(t)
	a.Equal(prefix, mode.Prefix())
	a.Equal(append(prefix, "lun", "show", "/vol/pdisk/abc"), mode.Command([]string{"lun", "show", "/vol/pdisk/abc"}))
	a.Equal(append(prefix, "/bin/sed", "-i", `'1i<target x>'`, "''", `'it'\''s'`),
		mode.Command([]string{"/bin/sed", "-i", "1i<target x>", "", "it's"}))
	a.Equal("ssh root@filer.example.org", mode.String())
}

func TestExecutionModeSelection(t *testing.T) {
	a := assert.New(t)
	a.Equal(LocalExecution{}, executionMode("p", BackendConfig{}))
	a.Equal(LocalExecution{}, executionMode("p", BackendConfig{MgtUserName: "root"}))
	a.Equal(RemoteExecution{Host: "p", User: "root", PrivateKey: "/k", Port: 2222},
		executionMode("p", BackendConfig{MgtUserName: "root", MgtUserPrivateKey: "/k", SSHPort: 2222}))
}
