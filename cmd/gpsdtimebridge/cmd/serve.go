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

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yazug/gpsd/cmd/gpsdtimebridge/config"
	"github.com/yazug/gpsd/ntpshm"
	"github.com/yazug/gpsd/timebridge"
)

var (
	serveConfigFlag      string
	serveMetricsPortFlag int
)

func init() {
	RootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveConfigFlag, "config", "c", "", "path to an INI config file (required)")
	serveCmd.Flags().IntVarP(&serveMetricsPortFlag, "metrics-port", "m", 9091, "port to serve Prometheus /metrics on")
	_ = serveCmd.MarkFlagRequired("config")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the time bridge: attach the segment pool and drive configured devices until signaled",
	Run: func(cmd *cobra.Command, args []string) {
		ConfigureVerbosity()

		opts, err := config.Load(serveConfigFlag)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}

		pool := ntpshm.NewPool(opts.SegmentCount, log.StandardLogger())
		pool.Attach(opts.Privileged)

		bridgeCtx := timebridge.NewContext(pool, log.StandardLogger())

		sessions := make([]*timebridge.Session, 0, len(opts.Devices))
		for _, dev := range opts.Devices {
			info := timebridge.DeviceInfo{
				Path:       dev.Path,
				Source:     sourceFromString(dev.Source),
				Privileged: opts.Privileged,
			}
			s := timebridge.NewSession(bridgeCtx, info, noopPPSListener{}, log.StandardLogger())
			if err := s.Activate(); err != nil {
				log.WithError(err).WithField("device", dev.Path).Error("activating session")
				continue
			}
			sessions = append(sessions, s)
		}
		defer func() {
			for _, s := range sessions {
				s.Deactivate()
			}
		}()

		registry := prometheus.NewRegistry()
		registry.MustRegister(newPoolCollector(pool, opts.SegmentCount))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
		server := &http.Server{Addr: fmt.Sprintf(":%d", serveMetricsPortFlag), Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("metrics server stopped")
			}
		}()

		if err := sdNotifyReady(); err != nil {
			log.WithError(err).Warn("sd_notify failed")
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info("shutting down")
		_ = server.Shutdown(context.Background())
	},
}

// sdNotifyReady notifies systemd the bridge is ready to serve, the
// same way ptp/c4u signals readiness.
func sdNotifyReady() error {
	supported, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if !supported && err != nil {
		return err
	} else if !supported {
		log.Warning("sd_notify not supported")
	} else {
		log.Info("successfully sent sd_notify event")
	}
	return nil
}

func sourceFromString(s string) timebridge.SourceType {
	switch s {
	case "usb":
		return timebridge.SourceUSB
	case "rs232":
		return timebridge.SourceRS232
	case "bluetooth":
		return timebridge.SourceBluetooth
	case "pty":
		return timebridge.SourcePTY
	default:
		return timebridge.SourceUnknown
	}
}

// noopPPSListener satisfies timebridge.PPSListener without a real
// kernel PPS source; edge detection hardware is out of scope (spec §1).
// It holds the PPS segment leased but never reports an edge, so serve
// still exercises the full session lifecycle and metrics surface.
type noopPPSListener struct{}

func (noopPPSListener) Listen(ctx context.Context, hooks timebridge.PPSHooks) error {
	<-ctx.Done()
	hooks.WrapHook()
	return nil
}
