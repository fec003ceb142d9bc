package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version string

func printTextTable(data [][]string) {
	var lengths = make([]int, len(data[0]))

	for _, line := range data {
		for i, field := range line {
			if len(field) > lengths[i] {
				lengths[i] = len(field)
			}
		}
	}

	fmts := make([]string, len(lengths))

	for i, l := range lengths {
		fmts[i] = fmt.Sprintf("%%-%ds", l)
	}

	pfmt := strings.Join(fmts, " | ") + " |\n"

	for _, line := range data {
		s := make([]interface{}, len(line))
		for i, v := range line {
			s[i] = v
		}

		fmt.Printf(pfmt, s...)
	}
}

// newLogger returns a zap backed logger writing json to stderr.
func newLogger(c *cli.Context) logr.Logger {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stderr"}
	config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	if c.Bool("debug") {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	zapLogger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}

	return zapr.NewLogger(zapLogger)
}

func main() {
	app := &cli.App{
		Name:    "diskplan",
		Version: version,
		Usage:   "Plan where new volumes go on a machine's disks",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Log planner decisions",
			},
		},
		Commands: []*cli.Command{
			&planCommand,
			&scanCommand,
			&scenariosCommand,
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
