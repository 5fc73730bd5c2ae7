package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/guidoenr/beatviz/internal/audio"
)

func newDevicesCommand() *cobra.Command {
	var asJSON bool
	var inputsOnly bool

	cmd := &cobra.Command{
		Use:         "devices",
		Short:       "List audio devices",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := audio.ListDevices()
			if err != nil {
				return fmt.Errorf("list audio devices: %w", err)
			}
			if inputsOnly {
				devices = filterInputs(devices)
			}
			if asJSON {
				return writeJSON(cmd, devices)
			}
			out := cmd.OutOrStdout()
			if len(devices) == 0 {
				fmt.Fprintln(out, "No audio devices found")
				return nil
			}
			fmt.Fprintln(out, renderDevices(devices))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print devices as JSON")
	cmd.Flags().BoolVar(&inputsOnly, "inputs", false, "Only list capture-capable devices")
	return cmd
}

func filterInputs(devices []audio.Device) []audio.Device {
	out := devices[:0:0]
	for _, d := range devices {
		if d.MaxInput > 0 {
			out = append(out, d)
		}
	}
	return out
}

func renderDevices(devices []audio.Device) string {
	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, []string{
			d.HostAPI,
			d.Name,
			strconv.Itoa(d.MaxInput),
			strconv.Itoa(d.MaxOutput),
			strconv.FormatFloat(d.DefaultSampleHz, 'f', 0, 64),
			yesNo(d.IsDefaultInput),
			strconv.Itoa(d.Score),
		})
	}
	return renderTable(
		[]string{"Host", "Device", "In", "Out", "Rate", "Default In", "Score"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignRight},
	)
}
