// Command mcbsim plays the MoCo (slave) role of a Motion Control Bus over
// a loopback pseudo-terminal, without real SPI hardware. mcbctl opens only
// spidev devices and cannot drive it. It holds a trivial in-memory register file
// seeded with the well-known comm-state and mapping registers and answers
// config-frame WRITE/READ/GETINFO requests against it.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	mcb "github.com/motioncontrolbus/mcb"
)

func main() {
	calcCRC := pflag.Bool("crc", true, "Expect and emit a trailing CRC word on every frame")
	help := pflag.Bool("help", false, "Display help text")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - MoCo-side simulator for a Motion Control Bus loopback pty.\n\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		return
	}

	port, err := mcb.OpenSimPort()
	if err != nil {
		fatal(err)
	}
	fmt.Printf("mcbsim: CoCo side should open %s\n", port.SlaveName())

	sim := newSlaveSim()
	if err := sim.run(port, *calcCRC); err != nil && err != io.EOF {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "mcbsim:", err)
	os.Exit(1)
}
