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

package timebridge

import (
	"context"

	"github.com/yazug/gpsd/ntpshm"
)

// TimeDrift is the paired GPS/local-clock observation passed through
// every publish and every hook in this package.
type TimeDrift = ntpshm.TimeDrift

// SourceType identifies what kind of device a session is driving.
type SourceType int

const (
	// SourceUnknown is the zero value; treated like any non-PPS source.
	SourceUnknown SourceType = iota
	// SourcePTY is a pseudo-terminal or other simulated/test source.
	// Sessions on this source never get NTP SHM or chrony treatment at
	// all — the whole point of a pty source is to replay captures
	// without poking the host's time daemons.
	SourcePTY
	// SourceUSB is a real USB GPS receiver. PPS-capable.
	SourceUSB
	// SourceRS232 is a real serial GPS receiver. PPS-capable.
	SourceRS232
	// SourceBluetooth is a Bluetooth-attached receiver. Not PPS-capable:
	// gpsd's allow-list has only ever named usb and rs232, and nothing
	// here changes that absent evidence the timing is trustworthy over
	// a Bluetooth link.
	SourceBluetooth
)

// ppsCapable reports whether a source type may carry a PPS segment.
func (s SourceType) ppsCapable() bool {
	return s == SourceUSB || s == SourceRS232
}

// DeviceInfo describes the device a Session is bound to.
type DeviceInfo struct {
	// Path is the device path (e.g. /dev/ttyUSB0); its basename is
	// used to derive the chrony SOCK endpoint name.
	Path string
	// Source is the kind of device this is.
	Source SourceType
	// Privileged is true when the owning process is still running
	// with elevated privilege (normally: before it has dropped root).
	Privileged bool
}

// PPSHooks is implemented by Session and invoked by a PPSListener from
// its own goroutine on every detected pulse edge, and once more when
// the listener shuts down.
type PPSHooks interface {
	// ReportHook is called for every detected pulse edge with the
	// TimeDrift observed for that edge. It returns a short diagnostic
	// label describing what happened to the sample.
	ReportHook(td TimeDrift) string
	// WrapHook is called once, when the listener is shutting down.
	WrapHook()
}

// PPSListener is the external PPS edge-detection collaborator: the
// kernel interface that wakes on a pulse-per-second edge. It is out of
// scope for this module (spec §1) but Session needs an interface to
// start and stop one.
type PPSListener interface {
	// Listen blocks, invoking hooks.ReportHook for every pulse edge
	// detected, until ctx is canceled. It then calls hooks.WrapHook
	// and returns nil. A non-nil error indicates the listener could
	// not run at all (e.g. failed to open the PPS device). Session
	// discards that error: the PPS segment and chrony sink stay held
	// until Deactivate, and the clock segment stays active.
	Listen(ctx context.Context, hooks PPSHooks) error
}
