// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// magicstake replays staking ledger scenarios and prints the resulting
// ledger snapshot.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/magic-network/magic-protocol/cmd/magicstake/scenario"
	"github.com/magic-network/magic-protocol/log"
	"github.com/magic-network/magic-protocol/metrics"
)

var (
	version   string
	gitCommit string

	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Value: 3,
		Usage: "log verbosity (0-9)",
	}
	jsonLogsFlag = cli.BoolFlag{
		Name:  "json-logs",
		Usage: "emit logs in JSON format",
	}
	enableMetricsFlag = cli.BoolFlag{
		Name:  "enable-metrics",
		Usage: "enables metrics collection",
	}
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s", version, gitCommit)
	app.Name = "magicstake"
	app.Usage = "Magic Protocol staking ledger tool"
	app.Copyright = "2025 The Magic Protocol developers"
	app.Flags = []cli.Flag{
		verbosityFlag,
		jsonLogsFlag,
		enableMetricsFlag,
	}
	app.Commands = []cli.Command{
		{
			Name:      "replay",
			Usage:     "replay a yaml scenario against a fresh ledger and print the snapshot",
			ArgsUsage: "FILE",
			Action:    replayAction,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func replayAction(ctx *cli.Context) error {
	initLogger(ctx.GlobalInt(verbosityFlag.Name), ctx.GlobalBool(jsonLogsFlag.Name))
	if ctx.GlobalBool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
	}
	if ctx.NArg() != 1 {
		return errors.New("replay: expected a scenario file argument")
	}
	f, err := os.Open(ctx.Args().First())
	if err != nil {
		return err
	}
	defer f.Close()

	sc, err := scenario.Load(f)
	if err != nil {
		return err
	}
	report, err := scenario.Run(sc)
	if err != nil {
		return err
	}
	return report.Write(os.Stdout)
}

func initLogger(verbosity int, jsonLogs bool) {
	level := new(slog.LevelVar)
	level.Set(log.FromLegacyLevel(verbosity))
	var handler slog.Handler
	if jsonLogs || !isatty.IsTerminal(os.Stderr.Fd()) {
		handler = log.JSONHandlerWithLevel(os.Stderr, level)
	} else {
		handler = log.LogfmtHandlerWithLevel(os.Stderr, level)
	}
	log.SetDefault(log.NewLogger(handler))
}
