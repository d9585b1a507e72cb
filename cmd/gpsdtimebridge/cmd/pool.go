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
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yazug/gpsd/cmd/gpsdtimebridge/config"
	"github.com/yazug/gpsd/ntpshm"
)

var (
	poolSegmentsFlag   int
	poolPrivilegedFlag bool
	poolConfigFlag     string
)

var attachedString = color.GreenString("attached")
var unattachedString = color.RedString("unattached")

func init() {
	RootCmd.AddCommand(poolCmd)
	poolCmd.AddCommand(poolStatusCmd)
	poolStatusCmd.Flags().IntVarP(&poolSegmentsFlag, "segments", "n", ntpshm.NTPSHMSegs, "number of NTP SHM segments to attach")
	poolStatusCmd.Flags().BoolVarP(&poolPrivilegedFlag, "privileged", "p", false, "also attach segments 0 and 1 (requires root)")
	poolStatusCmd.Flags().StringVarP(&poolConfigFlag, "config", "c", "", "path to an INI config file, overrides --segments/--privileged")
}

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Inspect the NTP SHM segment pool",
}

var poolStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Attach the NTP SHM segment pool and print per-slot state",
	Run: func(cmd *cobra.Command, args []string) {
		ConfigureVerbosity()

		segments := poolSegmentsFlag
		privileged := poolPrivilegedFlag
		if poolConfigFlag != "" {
			opts, err := config.Load(poolConfigFlag)
			if err != nil {
				log.Fatalf("loading config: %v", err)
			}
			segments = opts.SegmentCount
			privileged = opts.Privileged
		}

		pool := ntpshm.NewPool(segments, log.StandardLogger())
		pool.Attach(privileged)
		renderPoolStatus(pool, segments)
	},
}

// renderPoolStatus prints one row per configured segment index.
func renderPoolStatus(pool *ntpshm.Pool, segments int) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"slot", "key", "state"})

	for i := 0; i < segments; i++ {
		state := unattachedString
		if pool.AttachedAt(i) {
			state = attachedString
		}
		table.Append([]string{fmt.Sprintf("%d", i), fmt.Sprintf("0x%x", ntpshm.SHMKey+i), state})
	}

	table.Render()
	fmt.Printf("%d/%d segments attached\n", pool.Attached(), segments)
}
