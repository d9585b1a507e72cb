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

// Package ntpshm implements the NTP SHM refclock protocol: the
// lock-free shared-memory mailbox ntpd and chrony read to pick up a
// GPS-derived time sample (http://doc.ntp.org/current-stable/drivers/driver28.html).
//
// It is split in two halves: this file is the segment descriptor (one
// attached slot and its mode-1 write handshake); pool.go is the bank
// of segments a process attaches once and leases out per device.
package ntpshm

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// NTPSHMSize is the size in bytes of the legacy shmTime record
// (ntpd/refclock_shm.c). The layout below must stay binary-compatible
// with every ntpd/chrony build that reads it.
const NTPSHMSize = 96

// LeapNotInSync is the "clock alarm" leap indicator. A fresh segment
// carries this value until the first real publish lands, so a
// consumer that samples it before the first observation doesn't flag
// this refclock as a falseticker.
const LeapNotInSync int32 = 3

// layout is the Go mirror of ntpd's struct shmTime. Field order and
// types are load-bearing: this struct is never copied field-by-field
// onto the wire, it IS the wire, overlaid directly on the attached
// shared-memory region.
type layout struct {
	mode                 int32
	count                int32
	clockTimeStampSec    int64
	clockTimeStampUSec   int32
	receiveTimeStampSec  int64
	receiveTimeStampUSec int32
	leap                 int32
	precision            int32
	nsamples             int32
	valid                int32
	clockTimeStampNSec   int32
	receiveTimeStampNSec int32
	dummy                [8]int32
}

// TimeDrift is a paired observation: the GPS-derived wall-clock
// instant of an event (Real) and the local instant at which this
// process observed it (Clock). Real.Sub(Clock) is the instantaneous
// offset a consumer applies.
type TimeDrift struct {
	Real  time.Time
	Clock time.Time
}

// Segment is one leased NTP SHM slot, attached to this process's
// address space. It is owned by exactly one caller at a time; the
// owner is responsible for calling Publish from a single goroutine
// (see Pool.Alloc / Pool.Free).
type Segment struct {
	key   int32
	shmID uintptr
	mem   []byte
	l     *layout
}

func attach(key int32, perm uint32) (*Segment, error) {
	id, _, errno := unix.Syscall(unix.SYS_SHMGET, uintptr(key), uintptr(NTPSHMSize), uintptr(unix.IPC_CREAT|int(perm)))
	if errno != 0 {
		return nil, errno
	}
	addr, _, errno := unix.Syscall(unix.SYS_SHMAT, id, 0, 0)
	if errno != 0 {
		return nil, errno
	}
	s := &Segment{
		key:   key,
		shmID: id,
	}
	hdr := struct {
		addr uintptr
		len  int
		cap  int
	}{addr, NTPSHMSize, NTPSHMSize}
	s.mem = *(*[]byte)(unsafe.Pointer(&hdr))
	s.l = (*layout)(unsafe.Pointer(&s.mem[0]))
	return s, nil
}

// reset zeroes the slot and seeds it with the initial state gpsd has
// always used: mode 1, "clock alarm" leap, coarse precision, a
// 3-stage median filter. See NewPool/Alloc.
func (s *Segment) reset() {
	*s.l = layout{
		mode:      1,
		leap:      LeapNotInSync,
		precision: -1,
		nsamples:  3,
	}
}

// Publish writes one observation into the slot using the mode-1
// handshake the consumer relies on:
//
//  1. clear valid
//  2. bump count
//  3. release fence
//  4. write the payload
//  5. release fence
//  6. bump count
//  7. set valid
//
// A reader samples valid, then count, then the payload, then count
// again; if both counts agree it accepts the payload. count is bumped
// unconditionally, even with no reader attached yet — gpsd has always
// done this because a reader may attach mid-stream and the counters
// must already be moving when it does.
//
// Publish never fails: the slot is assumed attached for the lifetime
// of the owning Segment.
func (s *Segment) Publish(td TimeDrift, precision int32, leap int32) {
	validPtr := (*int32)(unsafe.Pointer(&s.l.valid))
	countPtr := (*int32)(unsafe.Pointer(&s.l.count))

	atomicStore(validPtr, 0)
	atomicAdd(countPtr, 1)

	realSec := td.Real.Unix()
	realNsec := int32(td.Real.Nanosecond())
	clockSec := td.Clock.Unix()
	clockNsec := int32(td.Clock.Nanosecond())

	s.l.clockTimeStampSec = realSec
	s.l.clockTimeStampNSec = realNsec
	s.l.clockTimeStampUSec = realNsec / 1000
	s.l.receiveTimeStampSec = clockSec
	s.l.receiveTimeStampNSec = clockNsec
	s.l.receiveTimeStampUSec = clockNsec / 1000
	s.l.leap = leap
	s.l.precision = precision
	s.l.nsamples = 3

	atomicAdd(countPtr, 1)
	atomicStore(validPtr, 1)
}
