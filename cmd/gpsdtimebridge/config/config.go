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

// Package config loads the gpsdtimebridge diagnostic CLI's settings
// from an INI file: how many NTP SHM segments to attach, and which
// devices to drive sessions for. This is configuration for the CLI
// binary only — the timebridge library itself takes everything through
// explicit constructor arguments (see timebridge.NewContext).
package config

import (
	"fmt"

	"github.com/go-ini/ini"
)

// DeviceConfig describes one device entry under a [device "..."]
// section.
type DeviceConfig struct {
	Path   string
	Source string // "usb", "rs232", "bluetooth", "pty"
}

// Options is the CLI's runtime configuration.
type Options struct {
	SegmentCount int
	Privileged   bool
	Devices      []DeviceConfig
}

// defaultOptions matches gpsd's own historical defaults: 8 segments,
// unprivileged unless told otherwise.
func defaultOptions() Options {
	return Options{SegmentCount: 8, Privileged: false}
}

// Load reads an INI config file of the form:
//
//	[bridge]
//	segments = 8
//	privileged = false
//
//	[device "gps0"]
//	path = /dev/ttyUSB0
//	source = usb
func Load(path string) (Options, error) {
	opts := defaultOptions()

	cfg, err := ini.Load(path)
	if err != nil {
		return opts, fmt.Errorf("config: load %s: %w", path, err)
	}

	if sec, err := cfg.GetSection("bridge"); err == nil {
		if k, err := sec.GetKey("segments"); err == nil {
			if n, err := k.Int(); err == nil {
				opts.SegmentCount = n
			}
		}
		if k, err := sec.GetKey("privileged"); err == nil {
			opts.Privileged, _ = k.Bool()
		}
	}

	for _, sec := range cfg.Sections() {
		if !isDeviceSection(sec.Name()) {
			continue
		}
		dev := DeviceConfig{
			Path:   sec.Key("path").String(),
			Source: sec.Key("source").MustString("usb"),
		}
		if dev.Path == "" {
			continue
		}
		opts.Devices = append(opts.Devices, dev)
	}

	return opts, nil
}

func isDeviceSection(name string) bool {
	const prefix = `device "`
	return len(name) > len(prefix) && name[:len(prefix)] == prefix
}
