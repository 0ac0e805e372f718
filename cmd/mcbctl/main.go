// Command mcbctl is a utility for talking to a Motion Control Bus slave
// from the command line: write or read a register, request a register's
// descriptor, add a cyclic mapping, or enable or disable cyclic mode.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	mcb "github.com/motioncontrolbus/mcb"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "", "Path to a YAML bus config")
		op         = pflag.StringP("op", "o", "read", "Operation: read, write, getinfo, txmap, rxmap, enable-cyclic, disable-cyclic")
		addr       = pflag.StringP("addr", "a", "0x0", "Register address, hex or decimal")
		size       = pflag.Uint16P("size", "s", 2, "Size in bytes (txmap/rxmap) or words (read/write)")
		value      = pflag.StringP("value", "v", "0", "Value to write, hex or decimal")
		help       = pflag.Bool("help", false, "Display help text")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - talk to a Motion Control Bus slave.\n\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		return
	}

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "mcbctl: --config is required")
		os.Exit(1)
	}
	cfg, err := mcb.LoadConfig(*configPath)
	if err != nil {
		fatal(err)
	}

	ins, closeFn, err := openInstance(cfg)
	if err != nil {
		fatal(err)
	}
	defer closeFn()

	addrVal, err := parseNumber(*addr)
	if err != nil {
		fatal(err)
	}
	valueVal, err := parseNumber(*value)
	if err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch *op {
	case "read":
		msg := &mcb.Msg{Node: mcb.MoCoNodeID, Addr: addrVal, Cmd: mcb.CmdRead, Size: *size}
		if err := ins.Read(ctx, msg); err != nil {
			fatal(err)
		}
		fmt.Printf("status=%s size=%d data=%v\n", msg.Status, msg.Size, msg.Data[:msg.Size])

	case "write":
		msg := &mcb.Msg{Node: mcb.MoCoNodeID, Addr: addrVal, Cmd: mcb.CmdWrite, Size: *size}
		msg.Data[0] = valueVal
		if err := ins.Write(ctx, msg); err != nil {
			fatal(err)
		}
		fmt.Printf("status=%s\n", msg.Status)

	case "getinfo":
		msg := &mcb.Msg{Node: mcb.MoCoNodeID, Addr: addrVal, Cmd: mcb.CmdGetInfo}
		if err := ins.GetInfo(ctx, msg); err != nil {
			fatal(err)
		}
		info := mcb.UnpackInfoDescriptor(msg.Data[:msg.Size])
		fmt.Printf("status=%s size=%d data_type=%d cyclic_type=%d access_type=%d\n",
			msg.Status, info.Size, info.DataType, info.CyclicType, info.AccessType)

	case "txmap":
		view, err := ins.TxMap(ctx, addrVal, *size)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("mapped, view len=%d words\n", len(view))

	case "rxmap":
		view, err := ins.RxMap(ctx, addrVal, *size)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("mapped, view len=%d words\n", len(view))

	case "enable-cyclic":
		sz, err := ins.EnableCyclic(ctx)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("cyclic enabled, cyclic_size=%d words\n", sz)

	case "disable-cyclic":
		if err := ins.DisableCyclic(ctx); err != nil {
			fatal(err)
		}
		fmt.Println("cyclic disable requested")

	default:
		fmt.Fprintf(os.Stderr, "mcbctl: unknown --op %q\n", *op)
		os.Exit(1)
	}
}

func parseNumber(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "mcbctl:", err)
	os.Exit(1)
}
