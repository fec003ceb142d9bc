package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"
	"machinerun.io/diskplan"
	"machinerun.io/diskplan/linux"
	"machinerun.io/diskplan/mockos"
)

//nolint:gochecknoglobals
var scanCommand = cli.Command{
	Name:      "scan",
	Usage:     "Scan disks and volume groups and show them with their free spaces",
	ArgsUsage: "[disk...]",
	Action:    scanRun,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "scenario",
			Usage: "Scan a built in layout instead of this machine",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Dump the graph as json",
		},
	},
}

func scanRun(c *cli.Context) error {
	var sys diskplan.System

	if s := c.String("scenario"); s != "" {
		l, err := mockos.Scenario(s)
		if err != nil {
			return err
		}

		if sys, err = l.System(); err != nil {
			return err
		}
	} else {
		sys = linux.System(newLogger(c))
	}

	g, err := diskplan.Probe(sys, c.Args().Slice()...)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		jbytes, err := json.MarshalIndent(g, "", "  ")
		if err != nil {
			return err
		}

		fmt.Printf("%s\n", string(jbytes))

		return nil
	}

	for _, name := range g.Disks.Names() {
		d := g.Disks[name]
		fmt.Printf("%s\n", d.String())

		for _, f := range d.FreeSpaces() {
			fmt.Printf("  free %s\n", f.String())
		}
	}

	for _, name := range g.VolumeGroups.Names() {
		vg := g.VolumeGroups[name]
		fmt.Printf("vg %s Size=%s Free=%s Members=%v\n", vg.Name, vg.Size, vg.Free, vg.Members)
	}

	return nil
}
