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

package chronysock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yazug/gpsd/hostendian"
)

func TestDevicePath(t *testing.T) {
	assert.Equal(t, "/var/run/chrony.ttyS0.sock", devicePath("/dev/ttyS0", true))
	assert.Equal(t, "/tmp/chrony.ttyUSB0.sock", devicePath("/dev/ttyUSB0", false))
}

func TestOpenUnavailableWhenEndpointMissing(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(nil, filepath.Join(dir, "nonexistent-device"), false)
	assert.Nil(t, s)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

// TestOpenAndSendRoundTrip starts a real unixgram listener standing in
// for chrony's SOCK refclock driver, dials a Sink against it the same
// way Open would (TempDir paths don't land under /tmp/chrony.<base>.sock,
// so the dial is done directly here rather than through Open), and
// asserts the wire record round-trips per spec: magic present, offset
// accurate to 1ns for sub-second offsets.
func TestOpenAndSendRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "chrony.ttyUSB0.sock")

	addr, err := net.ResolveUnixAddr("unixgram", sockPath)
	require.NoError(t, err)
	listener, err := net.ListenUnixgram("unixgram", addr)
	require.NoError(t, err)
	defer listener.Close()

	localAddr, err := net.ResolveUnixAddr("unixgram", sockPath+".client")
	require.NoError(t, err)
	conn, err := net.DialUnix("unixgram", localAddr, addr)
	require.NoError(t, err)
	sink := &Sink{conn: conn}
	defer sink.Close()

	real := time.Unix(1700000000, 500000000)
	clock := time.Unix(1700000000, 0)

	require.NoError(t, sink.Send(real, clock, 0))

	buf := make([]byte, 128)
	require.NoError(t, listener.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := listener.ReadFromUnixgram(buf)
	require.NoError(t, err)

	var got sample
	require.NoError(t, binary.Read(bytes.NewReader(buf[:n]), hostendian.Order, &got))

	assert.Equal(t, Magic, got.Magic)
	assert.InDelta(t, 0.5, got.Offset, 1e-9)
	assert.EqualValues(t, 0, got.Pulse)
	assert.Equal(t, clock.Unix(), got.TvSec)
}

func TestCloseNilSafe(t *testing.T) {
	var s *Sink
	assert.NoError(t, s.Close())
}

func TestCloseRemovesLocalSocket(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "chrony.test.sock")
	addr, err := net.ResolveUnixAddr("unixgram", sockPath)
	require.NoError(t, err)
	listener, err := net.ListenUnixgram("unixgram", addr)
	require.NoError(t, err)
	defer listener.Close()

	localPath := sockPath + ".client"
	localAddr, err := net.ResolveUnixAddr("unixgram", localPath)
	require.NoError(t, err)
	conn, err := net.DialUnix("unixgram", localAddr, addr)
	require.NoError(t, err)

	s := &Sink{conn: conn}
	require.NoError(t, s.Close())

	_, statErr := os.Stat(localPath)
	assert.True(t, os.IsNotExist(statErr))
}
