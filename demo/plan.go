package main

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/urfave/cli/v2"
	"machinerun.io/diskplan"
	"machinerun.io/diskplan/analyzer"
	"machinerun.io/diskplan/linux"
	"machinerun.io/diskplan/mockos"
	"machinerun.io/diskplan/planfile"
	"machinerun.io/diskplan/proposal"
)

//nolint:gochecknoglobals
var planCommand = cli.Command{
	Name:      "plan",
	Usage:     "Plan the volumes of a plan file and show the deletions, resizes and placements",
	ArgsUsage: "<planfile>",
	Action:    planRun,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "scenario",
			Usage: "Plan against a built in layout instead of the plan's one",
		},
		&cli.BoolFlag{
			Name:  "min",
			Usage: "Plan with minimum sizes only",
		},
	},
}

//nolint:gochecknoglobals
var scenariosCommand = cli.Command{
	Name:  "scenarios",
	Usage: "List the built in layouts",
	Action: func(c *cli.Context) error {
		for _, name := range mockos.Scenarios() {
			fmt.Println(name)
		}

		return nil
	},
}

func planRun(c *cli.Context) error {
	log := newLogger(c)

	if c.Args().Len() != 1 {
		return fmt.Errorf("must provide a plan file")
	}

	p, err := planfile.Load(c.Args().First())
	if err != nil {
		return err
	}

	if s := c.String("scenario"); s != "" {
		p.Scenario = s
		p.Layout = ""
	}

	vols, err := p.Volumes()
	if err != nil {
		return err
	}

	g, a, err := planGraph(p, log)
	if err != nil {
		return err
	}

	settings := p.Settings()
	if c.Bool("min") {
		settings.Target = proposal.TargetMin
	}

	res, err := proposal.Propose(g, a, vols, settings, log)
	if err != nil {
		return err
	}

	showResult(res)

	return nil
}

// planGraph returns the graph and analyzer to plan against: the plan's mock
// layout if it names one, else the disks of this machine.
func planGraph(p *planfile.Plan, log logr.Logger) (*diskplan.Devicegraph, analyzer.DiskAnalyzer, error) {
	l, err := p.MockLayout()
	if err == nil {
		g, err := l.Graph()
		if err != nil {
			return nil, nil, err
		}

		if a := p.Analyzer(); a != nil {
			return g, a, nil
		}

		return g, l.Analyzer(), nil
	}

	if err != planfile.ErrNoMockSystem {
		return nil, nil, err
	}

	g, err := diskplan.Probe(linux.System(log))
	if err != nil {
		return nil, nil, err
	}

	if a := p.Analyzer(); a != nil {
		return g, a, nil
	}

	return g, analyzer.NewCached(analyzer.NewByType(g, linux.NTFSProbe), 0), nil
}

func showResult(res *proposal.Result) {
	if len(res.DeletedPartitions) != 0 {
		data := [][]string{{"Deleted", "Size", "Type", "Label", "Filesystem", "VG", "Reason"}}
		for _, d := range res.DeletedPartitions {
			data = append(data, []string{
				d.Name, d.Size.String(), d.Type.String(), d.Label, d.Filesystem, d.VolumeGroup, string(d.Reason)})
		}

		printTextTable(data)
		fmt.Println()
	}

	if len(res.ResizedPartitions) != 0 {
		data := [][]string{{"Resized", "Old Size", "New Size"}}
		for _, r := range res.ResizedPartitions {
			data = append(data, []string{r.Name, r.OldSize.String(), r.NewSize.String()})
		}

		printTextTable(data)
		fmt.Println()
	}

	data := [][]string{{"Volume", "Disk", "Space", "Size", "Logical"}}

	for _, a := range res.Distribution.Spaces {
		for i, v := range a.Volumes {
			data = append(data, []string{
				v.String(), a.Space.Disk, a.Space.String(), a.Sizes[i].String(), fmt.Sprintf("%t", a.Logical[i])})
		}
	}

	printTextTable(data)

	if len(res.LogicalVolumes) != 0 {
		fmt.Println()

		data := [][]string{{"Logical Volume", "Name", "Min", "Desired"}}
		for _, v := range res.LogicalVolumes {
			data = append(data, []string{
				v.String(), v.LogicalVolumeName, v.MinSize.String(), v.DesiredSize.String()})
		}

		printTextTable(data)
	}
}
