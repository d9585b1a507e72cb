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

// Package timebridge ties the NTP SHM refclock protocol (ntpshm) and
// the chrony SOCK sample protocol (chronysock) to a GPS device's
// session lifecycle: segment leasing on Activate/Deactivate, and
// pulse-qualified fan-out to both channels on every PPS edge.
package timebridge

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/yazug/gpsd/ntpshm"
)

// Context is process-wide state: the segment bank every session
// leases from, and the current leap-second hint, updated by the GPS
// almanac decoder without synchronization with publishers — a stale
// read self-corrects on the next publish, so plain atomics are enough.
type Context struct {
	Pool *ntpshm.Pool

	log        logrus.FieldLogger
	leapNotify atomic.Int32
}

// NewContext creates a process-wide context around an already-created
// pool. Pass an explicit context through every constructor in this
// package rather than relying on package-level state, so a test binary
// can run several independent bridges side by side.
func NewContext(pool *ntpshm.Pool, log logrus.FieldLogger) *Context {
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &Context{Pool: pool, log: log}
	c.leapNotify.Store(ntpshm.LeapNotInSync)
	return c
}

// SetLeap updates the leap-second hint published on every subsequent
// write to either IPC channel.
func (c *Context) SetLeap(v int32) {
	c.leapNotify.Store(v)
}

// Leap returns the current leap-second hint.
func (c *Context) Leap() int32 {
	return c.leapNotify.Load()
}
