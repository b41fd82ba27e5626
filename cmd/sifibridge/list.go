package main

import (
	"context"
	"fmt"

	sifibridge "github.com/sifilabs/sifi-bridge-go"
)

// ListCmd lists devices visible from one inventory source.
type ListCmd struct {
	Source string `arg:"" optional:"" default:"ble" enum:"self,ble,serial,devices" help:"Inventory to query: self, ble, serial, or devices."`
}

func (c *ListCmd) Run(globals *CLI) error {
	cfg, err := globals.loadConfig()
	if err != nil {
		return err
	}

	log := globals.buildLogger(cfg)
	ctx := context.Background()

	return sifibridge.WithBridge(ctx, func(b sifibridge.Bridge) error {
		devices, err := b.ListDevices(ctx, sifibridge.ListSource(c.Source))
		if err != nil {
			return err
		}

		if len(devices) == 0 {
			fmt.Println("no devices found")

			return nil
		}

		for _, name := range devices {
			fmt.Println(name)
		}

		return nil
	}, bridgeOptions(cfg, log)...)
}
