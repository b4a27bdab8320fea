package main

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-tuyable/internal/bridges/tuyable"
)

// scanResult is one address seen during a scan.
type scanResult struct {
	Address     string `yaml:"address"`
	Name        string `yaml:"name,omitempty"`
	RSSI        int    `yaml:"rssi"`
	ServiceUUID string `yaml:"service_uuid"`
	Seen        int    `yaml:"seen"`
}

func newScanCmd() *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Listen for Tuya BLE advertisements on the local adapter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if duration <= 0 {
				return fmt.Errorf("--duration must be positive")
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "scanning for %s...\n", duration)

			results, err := scanOnce(cmd, tuyable.NewBLEScanner(), duration)
			if err != nil {
				return err
			}
			return writeYAML(cmd, results)
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "How long to listen")
	return cmd
}

// scanOnce runs one scan window and folds adverts by address, strongest
// signal first.
func scanOnce(cmd *cobra.Command, scanner tuyable.Scanner, window time.Duration) ([]scanResult, error) {
	var mu sync.Mutex
	byAddr := make(map[string]*scanResult)

	err := scanner.Scan(cmd.Context(), window, func(adv tuyable.Advertisement) {
		uuid, ok := tuyable.TuyaServiceUUID(adv)
		if !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		r, found := byAddr[adv.Address]
		if !found {
			r = &scanResult{Address: adv.Address, ServiceUUID: uuid}
			byAddr[adv.Address] = r
		}
		if adv.Name != "" {
			r.Name = adv.Name
		}
		r.RSSI = adv.RSSI
		r.Seen++
	})
	if err != nil {
		return nil, fmt.Errorf("scanning: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]scanResult, 0, len(byAddr))
	for _, r := range byAddr {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RSSI != out[j].RSSI {
			return out[i].RSSI > out[j].RSSI
		}
		return out[i].Address < out[j].Address
	})
	return out, nil
}
