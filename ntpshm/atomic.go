/*
Copyright (c) Facebook, Inc. and its affiliates.

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

package ntpshm

import "sync/atomic"

// atomicStore and atomicAdd stand in for the C implementation's
// `volatile` field plus an explicit memory_barrier() call. Go has no
// volatile qualifier; sync/atomic's Store/Add give the same
// happens-before guarantee the foreign consumer depends on (no write
// before the store is visible after it, no write after is visible
// before it), without requiring the payload fields themselves to be
// atomic — the two atomic ops around the payload writes establish the
// ordering.
func atomicStore(addr *int32, val int32) {
	atomic.StoreInt32(addr, val)
}

func atomicAdd(addr *int32, delta int32) {
	atomic.AddInt32(addr, delta)
}
