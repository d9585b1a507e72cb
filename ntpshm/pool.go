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

import (
	"github.com/sirupsen/logrus"
)

// SHMKey is the key of the first NTP SHM segment, "NTP0" packed into
// an int32, the same constant ntpd and gpsd have agreed on since
// driver28 was written. Subsequent segments are SHMKey+1, SHMKey+2...
const SHMKey = 0x4e545030

// NTPSHMSegs is the default number of segments a Pool attaches. gpsd
// creates two per device (clock + PPS); 8 covers 4 devices. A caller
// with more devices than that may raise it with NewPool.
const NTPSHMSegs = 8

// Pool is the fixed bank of NTP SHM segments a process attaches once,
// at startup, and leases out to device sessions on a first-come,
// first-served basis.
//
// ntpd's own rule, which gpsd has always mirrored, is that segments 0
// and 1 are created 0600 (root-writable only, since ntpd itself always
// runs as root before it drops privileges) and segments 2 and up are
// created 0666 so an unprivileged gpsd can still feed ntpd through
// them. A gpsd started without root only ever attaches segments 2 and
// up; the pair reserved for root stay nil handles and Alloc skips them.
//
// Pool.Alloc/Free are not safe for concurrent use; callers must only
// invoke them from one goroutine (normally the device-decoder
// goroutine). Segment.Publish on an already-leased Segment is safe
// from a different goroutine than the one that called Alloc, because
// the pool never touches a Segment's payload, only its InUse bit.
type Pool struct {
	log      logrus.FieldLogger
	segments []*Segment
	inUse    []bool
}

// NewPool creates an empty pool sized for n segments. Call Attach
// before leasing any of them.
func NewPool(n int, log logrus.FieldLogger) *Pool {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pool{
		log:      log,
		segments: make([]*Segment, n),
		inUse:    make([]bool, n),
	}
}

// Attach attaches every segment the calling privilege permits.
// Segments 0 and 1 are skipped entirely (handle stays nil) unless
// privileged is true. A failed attach is logged and leaves that
// index's handle nil; it is not fatal, matching gpsd's own policy of
// running degraded rather than refusing to start.
func (p *Pool) Attach(privileged bool) {
	for i := range p.segments {
		if i < 2 && !privileged {
			continue
		}
		perm := uint32(0666)
		if i < 2 {
			perm = 0600
		}
		seg, err := attach(int32(SHMKey+i), perm)
		if err != nil {
			p.log.WithError(err).WithField("segment", i).Error("NTPD shmget/shmat failed")
			continue
		}
		p.segments[i] = seg
	}
}

// Alloc returns the first free, attached segment, marks it in use and
// resets it to the initial gpsd state (mode 1, leap alarm, coarse
// precision, 3-stage filter). It returns (nil, false) if every
// attached segment is already leased or no segment attached at all.
func (p *Pool) Alloc() (*Segment, bool) {
	for i, seg := range p.segments {
		if seg != nil && !p.inUse[i] {
			p.inUse[i] = true
			seg.reset()
			return seg, true
		}
	}
	return nil, false
}

// Free returns a segment to the pool. It reports whether seg belonged
// to this pool; freeing a segment from a different pool, or a nil
// segment, is a no-op that returns false.
func (p *Pool) Free(seg *Segment) bool {
	if seg == nil {
		return false
	}
	for i, s := range p.segments {
		if s == seg {
			p.inUse[i] = false
			return true
		}
	}
	return false
}

// InUseCount reports how many segments are currently leased. Tests use
// it to assert Activate/Deactivate leaves the pool balanced.
func (p *Pool) InUseCount() int {
	n := 0
	for _, v := range p.inUse {
		if v {
			n++
		}
	}
	return n
}

// AttachedAt reports whether the segment at index i successfully
// attached. Out-of-range indices report false.
func (p *Pool) AttachedAt(i int) bool {
	if i < 0 || i >= len(p.segments) {
		return false
	}
	return p.segments[i] != nil
}

// Attached reports how many segments successfully attached. Callers
// exercising Attach against the real kernel (as opposed to an injected
// test double) use this to skip gracefully in sandboxes that don't
// grant SysV IPC permissions, the same way this codebase's own
// ntp/shm tests skip when shmget fails.
func (p *Pool) Attached() int {
	n := 0
	for _, s := range p.segments {
		if s != nil {
			n++
		}
	}
	return n
}
