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

package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSetupFile(t *testing.T) {
	t.Setenv("DEBUG", "")
	defer func() { _ = Setup(Options{}) }()

	file := filepath.Join(t.TempDir(), "pdisk.log")
	require.NoError(t, Setup(Options{Direction: "FILE", File: file, Level: "warn"}))

	Infof("volume %s created", "hidden")
	Warnf("volume %s is busy", "vol-1")
	Sync()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "volume vol-1 is busy")
	assert.NotContains(t, string(data), "hidden")
}

func TestSetupErrors(t *testing.T) {
	assert.Error(t, Setup(Options{Direction: "carrier-pigeon"}))
	t.Setenv("DEBUG", "")
	assert.Error(t, Setup(Options{Level: "loud"}))
}

func TestParseLevel(t *testing.T) {
	t.Setenv("DEBUG", "")
	tests := []struct {
		in   string
		want zap.AtomicLevel
	}{
		{in: "", want: zap.NewAtomicLevelAt(zap.InfoLevel)},
		{in: "debug", want: zap.NewAtomicLevelAt(zap.DebugLevel)},
		{in: "ERROR", want: zap.NewAtomicLevelAt(zap.ErrorLevel)},
	}
	for _, tt := range tests {
		level, err := parseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want.Level(), level, tt.in)
	}

	t.Setenv("DEBUG", "1")
	level, err := parseLevel("error")
	require.NoError(t, err)
	assert.Equal(t, zap.DebugLevel, level)
}
