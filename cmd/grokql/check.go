package main

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/hashicorp/go-hclog"
)

type checkCommand struct {
	flags *configFlags
}

func addCheckCommand(app *kingpin.Application) {
	cmd := &checkCommand{}
	check := app.Command("check", "Compile the pattern, columns, and query without ingesting anything.").Action(cmd.run)
	cmd.flags = addConfigFlags(check)
}

func (cmd *checkCommand) run(*kingpin.ParseContext) error {
	cfg, err := cmd.flags.load()
	if err != nil {
		exitWithErr(err)
	}
	built, err := buildPlumbing(cfg, hclog.NewNullLogger())
	if err != nil {
		exitWithErr(err)
	}
	s := built.plan.Schema()
	fmt.Printf("Pattern %s compiles.\n", cfg.Pattern)
	fmt.Printf("Output columns: %s\n", strings.Join(s.Columns(), ", "))
	fmt.Printf("Inputs: %d\n", len(built.sources))
	fmt.Println("OK")
	return nil
}
