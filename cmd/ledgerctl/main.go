// Command ledgerctl replays a ledger file offline and prints holdings, open
// lots, tax summaries and valuations as markdown reports.
//
//	ledgerctl replay -ledger ledger.jsonl -d 2024-06-30
//	ledgerctl tax -ledger ledger.jsonl -year 2023 -rates rates.toml
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range commands {
		commander.Register(c, "ledger")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

var commands = []subcommands.Command{
	&replayCmd{},
	&lotsCmd{},
	&taxCmd{},
	&valueCmd{},
}
