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

// Package chronysock implements chrony's SOCK refclock driver: a
// connected datagram socket a time source feeds nanosecond-resolution
// samples through, as an alternative (or companion) to the NTP SHM
// segments in ntpshm. See chrony's refclock_sock.c for the consumer
// side of this wire format.
package chronysock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yazug/gpsd/hostendian"
)

// Magic discriminates a valid sample record; chrony rejects anything
// that doesn't end with it.
const Magic int32 = 0x534F434B

// ErrUnavailable is returned by Open when the consumer's socket file
// does not exist. This is the common case — no chrony SOCK refclock
// configured for this device — and is never logged as an error.
var ErrUnavailable = errors.New("chronysock: endpoint does not exist")

// sample is chrony's struct sock_sample, reproduced field for field.
// tv is seconds/microseconds since the epoch on the wire (chrony's
// struct timeval uses platform long, 8 bytes on every target here).
type sample struct {
	TvSec  int64
	TvUsec int64
	Offset float64
	Pulse  int32
	Leap   int32
	_      int32
	Magic  int32
}

// Sink is a per-session connected datagram endpoint carrying one
// sample record per pulse.
type Sink struct {
	log  logrus.FieldLogger
	conn *net.UnixConn
}

// devicePath derives the chrony SOCK endpoint path gpsd has always
// used: /var/run when the caller is privileged (root, before it drops
// to run unprivileged), /tmp otherwise, since only root can create
// files under /var/run.
func devicePath(device string, privileged bool) string {
	base := filepath.Base(device)
	if privileged {
		return fmt.Sprintf("/var/run/chrony.%s.sock", base)
	}
	return fmt.Sprintf("/tmp/chrony.%s.sock", base)
}

// Open connects to the chrony SOCK endpoint for device, if one
// exists. It returns ErrUnavailable (not a wrapped syscall error) when
// the endpoint file is absent — the normal case when no chrony SOCK
// refclock is configured for this device.
func Open(log logrus.FieldLogger, device string, privileged bool) (*Sink, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	path := devicePath(device, privileged)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", path).Debug("chrony SOCK endpoint doesn't exist")
			return nil, ErrUnavailable
		}
		return nil, fmt.Errorf("chronysock: stat %s: %w", path, err)
	}

	local := fmt.Sprintf("%s.%d", path, os.Getpid())
	localAddr, err := net.ResolveUnixAddr("unixgram", local)
	if err != nil {
		return nil, fmt.Errorf("chronysock: resolve local addr: %w", err)
	}
	remoteAddr, err := net.ResolveUnixAddr("unixgram", path)
	if err != nil {
		return nil, fmt.Errorf("chronysock: resolve %s: %w", path, err)
	}
	conn, err := net.DialUnix("unixgram", localAddr, remoteAddr)
	if err != nil {
		log.WithError(err).WithField("path", path).Info("PPS connect chrony socket failed")
		return nil, fmt.Errorf("chronysock: dial %s: %w", path, err)
	}
	if err := os.Chmod(local, 0666); err != nil {
		conn.Close()
		return nil, fmt.Errorf("chronysock: chmod local socket: %w", err)
	}

	log.WithField("path", path).Debug("PPS using chrony socket")
	return &Sink{log: log, conn: conn}, nil
}

// Send marshals and transmits one sample for the edge described by
// td. offset is (Real - Clock) in seconds; for offsets beyond a few
// seconds this loses precision the refclock channel in ntpshm does
// not, so callers observing large offsets should prefer that path.
//
// Send errors are returned to the caller, but the PPS report hook in
// timebridge treats them as non-fatal: the consumer may simply have
// restarted.
func (s *Sink) Send(real, clock time.Time, leap int32) error {
	offset := real.Sub(clock).Seconds()
	sm := sample{
		TvSec:  clock.Unix(),
		TvUsec: int64(clock.Nanosecond() / 1000),
		Offset: offset,
		Pulse:  0,
		Leap:   leap,
		Magic:  Magic,
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, hostendian.Order, &sm); err != nil {
		return fmt.Errorf("chronysock: encode sample: %w", err)
	}
	if _, err := s.conn.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("chronysock: send sample: %w", err)
	}
	return nil
}

// Close releases the endpoint. Calling Close on a nil *Sink is
// allowed and a no-op, matching the PPS wrap hook's "close if open"
// contract.
func (s *Sink) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	local := s.conn.LocalAddr()
	err := s.conn.Close()
	if local != nil {
		_ = os.Remove(local.String())
	}
	return err
}
