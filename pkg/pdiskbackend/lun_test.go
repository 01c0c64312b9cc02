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
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stratuslab/pdisk/utils/exec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileLUN(t *testing.T, id string, fake *fakeExecutor) *LUN {
	t.Helper()
	b := mustBackend(t, "localhost", BackendConfig{Type: "file", VolumeName: "/data/vols"})
	return NewLUN(id, b, NewCommandExecutor(fake))
}

func netappLUN(t *testing.T, id string, fake *fakeExecutor) *LUN {
	t.Helper()
	b := mustBackend(t, "filer", BackendConfig{Type: "netapp", VolumeName: "/vol/pdisk",
		InitiatorGroup: "linux", MgtUserName: "admin", MgtUserPrivateKey: "/root/.ssh/id_rsa"})
	return NewLUN(id, b, NewCommandExecutor(fake))
}

func TestLUNCreateFile(t *testing.T) {
	fake := &fakeExecutor{}
	lun := fileLUN(t, "abc123", fake)

	res, err := lun.Execute(context.Background(), ActionCreate, Request{SizeMB: 100})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, []string{
		"/bin/dd if=/dev/zero of=/data/vols/abc123 bs=1024 count=102400",
		"/bin/chown oneadmin:cloud /data/vols/abc123",
	}, fake.commandLines())

	state, step := lun.State()
	assert.Equal(t, StateSucceeded, state)
	assert.Equal(t, 1, step)
}

func TestLUNGetTurlFile(t *testing.T) {
	fake := &fakeExecutor{}
	fake.on("/bin/echo", reply{output: "file:///data/vols/abc123\n"})
	lun := fileLUN(t, "abc123", fake)

	res, err := lun.Execute(context.Background(), ActionGetTurl, Request{})
	require.NoError(t, err)
	assert.Equal(t, "file:///data/vols/abc123", res.Value)
}

func TestLUNStopsAtFirstFailure(t *testing.T) {
	fake := &fakeExecutor{}
	fake.on("/bin/dd", reply{output: "dd: No space left on device", code: 1})
	lun := fileLUN(t, "abc123", fake)

	res, err := lun.Execute(context.Background(), ActionCreate, Request{SizeMB: 100})
	require.Error(t, err)

	var execErr *CommandExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, 0, execErr.Step)
	assert.Equal(t, "create", execErr.Result.Command)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 1, res.ExitCode)
	assert.Len(t, fake.calls, 1)

	state, _ := lun.State()
	assert.Equal(t, StateFailed, state)
}

func TestLUNSuccessPatternMismatch(t *testing.T) {
	fake := &fakeExecutor{}
	fake.on("/usr/bin/stat", reply{output: "garbage"})
	lun := fileLUN(t, "abc123", fake)

	res, err := lun.Execute(context.Background(), ActionSize, Request{})
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 0, res.ExitCode)
}

func TestLUNUnsupportedActionRunsNothing(t *testing.T) {
	fake := &fakeExecutor{}
	b := mustBackend(t, "filer", BackendConfig{Type: "netapp-cluster", VolumeName: "/vol/pdisk",
		InitiatorGroup: "linux", Vserver: "svm1", MgtUserName: "admin", MgtUserPrivateKey: "/k"})
	lun := NewLUN("abc", b, NewCommandExecutor(fake))

	res, err := lun.Execute(context.Background(), ActionSize, Request{})
	assert.Nil(t, res)
	var unsupported *UnsupportedActionError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, BackendNetAppCluster, unsupported.Backend)
	assert.Empty(t, fake.calls)
}

func TestLUNNoopAction(t *testing.T) {
	fake := &fakeExecutor{}
	lun := fileLUN(t, "abc123", fake)

	for _, action := range []Action{ActionMap, ActionUnmap, ActionRebase} {
		res, err := lun.Execute(context.Background(), action, Request{})
		require.NoError(t, err, action)
		assert.Equal(t, OutcomeSucceeded, res.Outcome)
		assert.Empty(t, res.Value)
	}
	assert.Empty(t, fake.calls)
}

func TestLUNGetTurlNetApp(t *testing.T) {
	fake := &fakeExecutor{}
	fake.on("iscsi nodename", reply{output: "iSCSI target nodename: iqn.1992-08.com.netapp:sn.1234\n"}).
		on("lun show -m", reply{output: "LUN path         Mapped to  LUN ID  Protocol\n" +
			"/vol/pdisk/abc   linux      3       iSCSI\n"})
	lun := netappLUN(t, "abc", fake)

	res, err := lun.Execute(context.Background(), ActionGetTurl, Request{})
	require.NoError(t, err)
	assert.Equal(t, "iscsi://filer:3260/iqn.1992-08.com.netapp:sn.1234:3", res.Value)
	require.Len(t, fake.calls, 2)
	assert.Equal(t, "ssh", fake.calls[0][0])
	assert.Contains(t, fake.commandLines()[1], "admin@filer lun show -m /vol/pdisk/abc")
}

func TestLUNBenignStepContinues(t *testing.T) {
	fake := &fakeExecutor{}
	fake.on("lun unmap", reply{output: "lun unmap: LUN /vol/pdisk/abc is not mapped to initiator group linux", code: 1})
	lun := netappLUN(t, "abc", fake)

	res, err := lun.Execute(context.Background(), ActionDelete, Request{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSucceeded, res.Outcome)
	require.Len(t, fake.calls, 2)
	assert.Contains(t, fake.commandLines()[1], "lun destroy /vol/pdisk/abc")
}

func TestLUNCancelledContext(t *testing.T) {
	fake := &fakeExecutor{}
	lun := fileLUN(t, "abc123", fake)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := lun.Execute(ctx, ActionCreate, Request{SizeMB: 10})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.Empty(t, fake.calls)

	state, _ := lun.State()
	assert.Equal(t, StateAborted, state)
}

func TestLUNCancelledMidSequence(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake := &fakeExecutor{}
	fake.on("/bin/dd", reply{do: cancel})
	lun := fileLUN(t, "abc123", fake)

	res, err := lun.Execute(ctx, ActionCreate, Request{SizeMB: 10})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, []string{
		"/bin/dd if=/dev/zero of=/data/vols/abc123 bs=1024 count=10240",
		"/bin/chown oneadmin:cloud /data/vols/abc123",
	}, fake.commandLines())
}

func TestLUNValidate(t *testing.T) {
	lun := fileLUN(t, "abc", &fakeExecutor{})

	var unsupported *UnsupportedActionError
	assert.True(t, errors.As(lun.Validate(Action("resize"), Request{}), &unsupported))
	var invalid *InvalidRequestError
	assert.True(t, errors.As(lun.Validate(ActionCreate, Request{}), &invalid))
	assert.NoError(t, lun.Validate(ActionCreate, Request{SizeMB: 1}))
	assert.NoError(t, lun.Validate(ActionMap, Request{}))
}

func TestLUNCommandCannotStart(t *testing.T) {
	fake := &fakeExecutor{}
	fake.on("/bin/dd", reply{err: errors.New(`exec: "/bin/dd": file does not exist`)})
	lun := fileLUN(t, "abc123", fake)

	res, err := lun.Execute(context.Background(), ActionCreate, Request{SizeMB: 10})
	require.Error(t, err)
	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.Equal(t, -1, res.ExitCode)
	assert.Len(t, fake.calls, 1)
}

func TestLUNSnapshotFile(t *testing.T) {
	fake := &fakeExecutor{}
	lun := fileLUN(t, "abc", fake)

	_, err := lun.Execute(context.Background(), ActionSnapshot, Request{NewVolumeID: "def"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/bin/cp --sparse=always /data/vols/abc /data/vols/def",
		"/bin/chown oneadmin:cloud /data/vols/def",
	}, fake.commandLines())
}

func TestLUNInvalidRequests(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		action Action
		req    Request
	}{
		{name: "path in id", id: "../etc/passwd", action: ActionCheck},
		{name: "shell in id", id: "a;rm -rf /", action: ActionDelete},
		{name: "missing size", id: "abc", action: ActionCreate},
		{name: "negative size", id: "abc", action: ActionCreate, req: Request{SizeMB: -1}},
		{name: "missing new id", id: "abc", action: ActionSnapshot},
		{name: "bad new id", id: "abc", action: ActionSnapshot, req: Request{NewVolumeID: "x y"}},
		{name: "same new id", id: "abc", action: ActionSnapshot, req: Request{NewVolumeID: "abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeExecutor{}
			lun := fileLUN(t, tt.id, fake)
			_, err := lun.Execute(context.Background(), tt.action, tt.req)
			var invalid *InvalidRequestError
			assert.True(t, errors.As(err, &invalid), "got %v", err)
			assert.Empty(t, fake.calls)
		})
	}
}

func TestSizeTokens(t *testing.T) {
	assert.Equal(t, map[string]string{"SIZE": "1500", "SIZE_KB": "1536000", "SIZE_GB": "2"}, sizeTokens(1500))
	assert.Equal(t, map[string]string{"SIZE": "1024", "SIZE_KB": "1048576", "SIZE_GB": "1"}, sizeTokens(1024))
	assert.Empty(t, sizeTokens(0))
}

func TestLVMTargetFile(t *testing.T) {
	b := mustBackend(t, "localhost", BackendConfig{Type: "lvm", VolumeName: "/dev/vg.pdisk"})
	spec, ok := b.Registry().Command("add_target")
	require.True(t, ok)

	argv := b.Detokenize(spec.Args, Volume{ID: "vol-1"})
	target := filepath.Join(t.TempDir(), "vol-1.conf")
	require.NoError(t, os.WriteFile(target, nil, 0644))
	argv[len(argv)-1] = target

	want := "<target iqn.2011-01.eu.stratuslab:vol-1>\n    backing-store /dev/vg.pdisk/vol-1\n</target>\n"
	executor := NewCommandExecutor(&exec.CommandExecutor{})
	// rewriting an already exported volume leaves a single block
	for i := 0; i < 2; i++ {
		res := executor.Run(BackendLVM, spec, argv)
		require.Equal(t, OutcomeSucceeded, res.Outcome, res.Output)
		content, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Equal(t, want, string(content))
	}
}
