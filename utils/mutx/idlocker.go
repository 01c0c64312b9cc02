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

package mutx

import (
	"sync"

	"k8s.io/apimachinery/pkg/util/sets"
)

// VolumeLocks serializes operations on the same volumes. Operations on
// other volumes run freely.
type VolumeLocks struct {
	locks sets.String
	mux   sync.Mutex
}

// NewVolumeLocks returns new VolumeLocks.
func NewVolumeLocks() *VolumeLocks {
	return &VolumeLocks{
		locks: sets.NewString(),
	}
}

// TryAcquire locks all ids and returns true, or locks none of them and
// returns false when one is already held.
func (vl *VolumeLocks) TryAcquire(ids ...string) bool {
	vl.mux.Lock()
	defer vl.mux.Unlock()
	if vl.locks.HasAny(ids...) {
		return false
	}
	vl.locks.Insert(ids...)
	return true
}

// Release deletes the locks on ids.
func (vl *VolumeLocks) Release(ids ...string) {
	vl.mux.Lock()
	defer vl.mux.Unlock()
	vl.locks.Delete(ids...)
}

// Held returns the locked ids, sorted.
func (vl *VolumeLocks) Held() []string {
	vl.mux.Lock()
	defer vl.mux.Unlock()
	return vl.locks.List()
}
