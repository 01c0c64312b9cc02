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

package journal

import "time"

// Schema creates the operations table, one row per backend action.
const Schema = `
CREATE TABLE IF NOT EXISTS operations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    volume TEXT NOT NULL,
    action TEXT NOT NULL,
    backend TEXT NOT NULL,
    proxy TEXT NOT NULL,
    new_volume TEXT,
    size_mb INTEGER,
    status TEXT NOT NULL CHECK(status IN ('running', 'succeeded', 'failed', 'aborted')),
    value TEXT,
    error_message TEXT,
    started_at INTEGER NOT NULL,
    finished_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_operations_volume ON operations(volume);
CREATE INDEX IF NOT EXISTS idx_operations_started_at ON operations(started_at);
`

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusAborted   = "aborted"
)

// Operation is one recorded backend action.
type Operation struct {
	ID           int64     `json:"id"`
	Volume       string    `json:"volume"`
	Action       string    `json:"action"`
	Backend      string    `json:"backend"`
	Proxy        string    `json:"proxy"`
	NewVolume    string    `json:"newVolume,omitempty"`
	SizeMB       int64     `json:"size,omitempty"`
	Status       string    `json:"status"`
	Value        string    `json:"value,omitempty"`
	ErrorMessage string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
}
