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

package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/stratuslab/pdisk/pkg/configuration"
	"github.com/stratuslab/pdisk/pkg/journal"
	"github.com/stratuslab/pdisk/pkg/metrics"
	"github.com/stratuslab/pdisk/pkg/pdiskbackend"
	"github.com/stratuslab/pdisk/utils/exec"
	"github.com/stratuslab/pdisk/utils/log"
	"github.com/stratuslab/pdisk/utils/mutx"
)

// ErrVolumeBusy is returned while another operation holds the volume.
var ErrVolumeBusy = errors.New("another operation is running on the volume")

// Request names one action on one volume.
type Request struct {
	// Proxy selects the backend section, the first configured proxy when empty.
	Proxy       string
	VolumeID    string
	Action      pdiskbackend.Action
	SizeMB      int64
	NewVolumeID string
}

// Dispatcher resolves the backend of a request and runs the action on it.
// It is safe for concurrent use, operations touching the same volume are
// refused while one is running.
type Dispatcher struct {
	mu       sync.RWMutex
	config   *configuration.Config
	backends map[string]pdiskbackend.Backend
	executor *pdiskbackend.CommandExecutor

	runner  exec.Executor
	metrics *metrics.Metrics
	journal *journal.Repository
	locks   *mutx.VolumeLocks
}

type Option func(*Dispatcher)

// WithRunner replaces the process executor, tests use it to script commands.
func WithRunner(runner exec.Executor) Option {
	return func(d *Dispatcher) {
		d.runner = runner
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithJournal(j *journal.Repository) Option {
	return func(d *Dispatcher) {
		d.journal = j
	}
}

func New(cfg *configuration.Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		runner: &exec.CommandExecutor{},
		locks:  mutx.NewVolumeLocks(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.Reload(cfg)
	return d
}

// Reload switches to cfg. Running operations finish with the backend they started with.
func (d *Dispatcher) Reload(cfg *configuration.Config) {
	execOpts := []pdiskbackend.ExecutorOption{pdiskbackend.WithTimeout(cfg.Main.CommandTimeout)}
	if d.metrics != nil {
		execOpts = append(execOpts, pdiskbackend.WithObserver(d.metrics))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.config = cfg
	d.backends = map[string]pdiskbackend.Backend{}
	d.executor = pdiskbackend.NewCommandExecutor(d.runner, execOpts...)
}

func (d *Dispatcher) Config() *configuration.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

// Busy lists the proxy/volume pairs operations are running on.
func (d *Dispatcher) Busy() []string {
	return d.locks.Held()
}

func (d *Dispatcher) backend(proxy string) (pdiskbackend.Backend, *pdiskbackend.CommandExecutor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if proxy == "" {
		proxy = d.config.DefaultProxy()
	}
	if b, ok := d.backends[proxy]; ok {
		return b, d.executor, nil
	}
	b, err := d.config.Backend(proxy)
	if err != nil {
		return nil, nil, err
	}
	d.backends[proxy] = b
	return b, d.executor, nil
}

// Dispatch runs req and returns the result of its last command.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*pdiskbackend.Result, error) {
	backend, executor, err := d.backend(req.Proxy)
	if err != nil {
		return nil, err
	}

	lun := pdiskbackend.NewLUN(req.VolumeID, backend, executor)
	lunReq := pdiskbackend.Request{SizeMB: req.SizeMB, NewVolumeID: req.NewVolumeID}
	// rejected requests leave no trace
	if err := lun.Validate(req.Action, lunReq); err != nil {
		return nil, err
	}

	keys := []string{lockKey(backend.Proxy(), req.VolumeID)}
	if req.NewVolumeID != "" && req.NewVolumeID != req.VolumeID {
		keys = append(keys, lockKey(backend.Proxy(), req.NewVolumeID))
	}
	if !d.locks.TryAcquire(keys...) {
		return nil, fmt.Errorf("%s on %s: %w", req.Action, req.VolumeID, ErrVolumeBusy)
	}
	defer d.locks.Release(keys...)

	op := &journal.Operation{
		Volume:    req.VolumeID,
		Action:    string(req.Action),
		Backend:   string(backend.Type()),
		Proxy:     backend.Proxy(),
		NewVolume: req.NewVolumeID,
		SizeMB:    req.SizeMB,
	}
	if d.journal != nil {
		if err := d.journal.Start(ctx, op); err != nil {
			log.Warnf("Failed to journal %s on %s: %v", req.Action, req.VolumeID, err)
		}
	}
	var done func(string)
	if d.metrics != nil {
		done = d.metrics.StartOperation(backend.Type(), req.Action)
	}

	res, err := lun.Execute(ctx, req.Action, lunReq)

	op.Status = Status(err)
	if res != nil {
		op.Value = res.Value
	}
	if err != nil {
		op.ErrorMessage = err.Error()
	}
	if done != nil {
		done(op.Status)
	}
	if d.journal != nil && op.ID != 0 {
		// the request context may be gone, the record must still be closed
		if jerr := d.journal.Finish(context.Background(), op); jerr != nil {
			log.Warnf("Failed to journal the end of %s on %s: %v", req.Action, req.VolumeID, jerr)
		}
	}
	return res, err
}

// Status maps the error of an operation to its journal status.
func Status(err error) string {
	if err == nil {
		return journal.StatusSucceeded
	}
	var execErr *pdiskbackend.CommandExecutionError
	if errors.As(err, &execErr) && execErr.Result.Outcome == pdiskbackend.OutcomeAborted {
		return journal.StatusAborted
	}
	return journal.StatusFailed
}

func lockKey(proxy, volume string) string {
	return proxy + "/" + volume
}
