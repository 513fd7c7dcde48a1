package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Monitor  MonitorCommand  `command:"monitor" description:"Connect to a drive over USB serial and show its telemetry"`
	Sim      SimCommand      `command:"sim" description:"Run the drive against a simulated motor"`
	Identify IdentifyCommand `command:"identify" description:"Print a drive's link version and message dictionary"`
	Defaults DefaultsCommand `command:"defaults" description:"Print the default motor configuration as JSON"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "sixstep-host - monitor and control a six-step BLDC drive"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
