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
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yazug/gpsd/chronysock"
	"github.com/yazug/gpsd/ntpshm"
)

// PPSMinFixes is the number of fixes a session must see before it will
// ship a PPS edge to a consumer. Early pulses can arrive before the
// receiver has really stabilized, and shipping one then would hand
// ntpd/chrony a wildly inaccurate time.
const PPSMinFixes = 3

// Session is a per-device façade binding at most one clock segment,
// one PPS segment and one chrony SOCK sink to a device, plus whatever
// PPS listener goroutine Activate started for it.
type Session struct {
	ctx      *Context
	device   DeviceInfo
	listener PPSListener
	log      logrus.FieldLogger

	ClockSegment *ntpshm.Segment
	PPSSegment   *ntpshm.Segment

	sink *chronysock.Sink

	cancel context.CancelFunc
	group  *errgroup.Group

	// ShipToNTPD gates the whole PPS report path; the decoder layer
	// flips it off when a device has been configured not to discipline
	// the system clock. Atomic for the same reason as FixCount: set
	// from the decoder goroutine, read from the PPS listener goroutine.
	ShipToNTPD atomic.Bool
	// FixCount is bumped by PublishFix (the decoder goroutine) and read
	// by ReportHook (the PPS listener goroutine) to gate PPS reporting
	// until the receiver has stabilized; atomic because those two
	// goroutines touch it without any other synchronization, the same
	// reasoning as leapNotify in Context.
	FixCount atomic.Int32
}

// NewSession creates an inactive session for device. Both segment
// handles start nil; nothing else happens until Activate is called.
func NewSession(ctx *Context, device DeviceInfo, listener PPSListener, log logrus.FieldLogger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Session{
		ctx:      ctx,
		device:   device,
		listener: listener,
		log:      log,
	}
	s.ShipToNTPD.Store(true)
	return s
}

// Activate leases segments for this session's device and, for
// PPS-capable sources, opens the chrony sink and starts the PPS
// listener goroutine. Allocation failures are logged and degrade the
// session (clock-only, or no IPC at all) rather than failing Activate.
func (s *Session) Activate() error {
	if s.device.Source == SourcePTY {
		// don't talk to NTP when running inside the test harness
		return nil
	}

	clockSeg, ok := s.ctx.Pool.Alloc()
	if !ok {
		s.log.WithField("device", s.device.Path).Info("ntpshm_alloc() failed")
		return nil
	}
	s.ClockSegment = clockSeg

	if !s.device.Source.ppsCapable() {
		return nil
	}

	ppsSeg, ok := s.ctx.Pool.Alloc()
	if !ok {
		s.log.WithField("device", s.device.Path).Info("ntpshm_alloc(1) failed")
		return nil
	}
	s.PPSSegment = ppsSeg

	sink, err := chronysock.Open(s.log, s.device.Path, s.device.Privileged)
	if err == nil {
		s.sink = sink
	}
	// ErrUnavailable is the common case (no consumer configured) and
	// chronysock.Open has already logged it at debug level; any other
	// error just means PPS reports fall back to the refclock segment.

	listenCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	group := &errgroup.Group{}
	group.Go(func() error {
		return s.listener.Listen(listenCtx, s)
	})
	s.group = group

	return nil
}

// Deactivate releases everything Activate set up. It is safe to call
// more than once, and safe to call on a session that was never
// activated.
func (s *Session) Deactivate() {
	if s.ClockSegment != nil {
		s.ctx.Pool.Free(s.ClockSegment)
		s.ClockSegment = nil
	}
	if s.PPSSegment != nil {
		if s.cancel != nil {
			s.cancel()
			_ = s.group.Wait()
			s.cancel = nil
			s.group = nil
		}
		s.ctx.Pool.Free(s.PPSSegment)
		s.PPSSegment = nil
	}
	if s.sink != nil {
		_ = s.sink.Close()
		s.sink = nil
	}
}

// ReportHook ships the time of a PPS event to the NTP SHM refclock and
// the chrony SOCK sink. It runs on the PPS listener's own goroutine;
// that's safe because a leased Segment is owned by this session alone,
// and this hook never touches the pool's in-use bookkeeping.
func (s *Session) ReportHook(td TimeDrift) string {
	if !s.ShipToNTPD.Load() {
		return "skipped ship_to_ntp=0"
	}
	if s.FixCount.Load() <= int32(PPSMinFixes) {
		return "no fix"
	}

	label := "accepted"
	if s.sink != nil {
		label = "accepted chrony sock"
		if err := s.sink.Send(td.Real, td.Clock, s.ctx.Leap()); err != nil {
			s.log.WithError(err).Debug("chrony sock send failed")
		}
	}
	if s.PPSSegment != nil {
		s.PPSSegment.Publish(td, -20, s.ctx.Leap())
	}
	return label
}

// WrapHook closes the chrony sink if it's open. It is called once by
// the PPS listener as it shuts down and must be safe to call exactly
// once per Activate.
func (s *Session) WrapHook() {
	if s.sink != nil {
		_ = s.sink.Close()
		s.sink = nil
	}
}

// PublishFix ships a fix-derived (NMEA-precision) time to the clock
// segment, if one is leased, and bumps FixCount. This is called from
// the decoder goroutine at whatever rate fixes arrive, typically 1Hz;
// it is what lets PPSMinFixes eventually pass.
func (s *Session) PublishFix(td TimeDrift) {
	s.FixCount.Add(1)
	if s.ClockSegment == nil {
		return
	}
	s.ClockSegment.Publish(td, -1, s.ctx.Leap())
}
