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
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yazug/gpsd/ntpshm"
	"github.com/yazug/gpsd/timebridge"
)

var (
	simulateDeviceFlag   string
	simulateOffsetFlag   time.Duration
	simulateSamplesFlag  int
	simulateIntervalFlag time.Duration
)

func init() {
	RootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVarP(&simulateDeviceFlag, "device", "d", "/dev/ttyUSB0", "device path to simulate")
	simulateCmd.Flags().DurationVarP(&simulateOffsetFlag, "offset", "o", 500*time.Millisecond, "simulated offset between GPS and system clock")
	simulateCmd.Flags().IntVarP(&simulateSamplesFlag, "samples", "n", 1, "number of fixes to publish")
	simulateCmd.Flags().DurationVarP(&simulateIntervalFlag, "interval", "i", time.Second, "delay between published fixes")
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Publish synthetic fixes through a session, without real hardware",
	Run: func(cmd *cobra.Command, args []string) {
		ConfigureVerbosity()

		pool := ntpshm.NewPool(ntpshm.NTPSHMSegs, log.StandardLogger())
		pool.Attach(false)
		if pool.Attached() == 0 {
			log.Fatal("no NTP SHM segments attached; run as a user with shm permissions")
		}

		bridgeCtx := timebridge.NewContext(pool, log.StandardLogger())
		info := timebridge.DeviceInfo{Path: simulateDeviceFlag, Source: timebridge.SourceUSB}
		s := timebridge.NewSession(bridgeCtx, info, noopPPSListener{}, log.StandardLogger())
		if err := s.Activate(); err != nil {
			log.Fatalf("activating simulated session: %v", err)
		}
		defer s.Deactivate()

		for i := 0; i < simulateSamplesFlag; i++ {
			now := time.Now()
			td := timebridge.TimeDrift{Real: now, Clock: now.Add(-simulateOffsetFlag)}
			s.PublishFix(td)
			fmt.Printf("published fix %d/%d: offset=%s\n", i+1, simulateSamplesFlag, simulateOffsetFlag)
			if i+1 < simulateSamplesFlag {
				time.Sleep(simulateIntervalFlag)
			}
		}
	},
}
