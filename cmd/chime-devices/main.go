// ABOUTME: Lists the audio devices each output driver can see
// ABOUTME: Useful for picking a -device value for the chime player
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/chime-audio/chime/pkg/audio/output"
)

var driverName = flag.String("driver", "", "Only list devices for this driver (default: all drivers)")

func main() {
	flag.Parse()
	log.SetFlags(0)

	names := output.Drivers()
	if *driverName != "" {
		names = []string{*driverName}
	}

	failed := 0
	for _, name := range names {
		driver, err := output.NewDriver(name)
		if err != nil {
			log.Fatalf("%v", err)
		}

		devices, err := driver.Devices()
		if err != nil {
			log.Printf("%s: failed to list devices: %v", name, err)
			failed++
			continue
		}

		fmt.Printf("%s (%d devices)\n", name, len(devices))
		for _, d := range devices {
			fmt.Printf("  %-40s %s%s\n", d.SystemName, direction(d), describe(d))
		}
	}

	if failed == len(names) {
		log.Fatalf("no driver could list devices")
	}
}

func direction(d output.DeviceInfo) string {
	switch {
	case d.IsInput && d.IsOutput:
		return "[in/out]"
	case d.IsInput:
		return "[in]"
	case d.IsOutput:
		return "[out]"
	default:
		return "[?]"
	}
}

func describe(d output.DeviceInfo) string {
	if d.Description == "" || d.Description == d.SystemName {
		return ""
	}
	return " " + d.Description
}
