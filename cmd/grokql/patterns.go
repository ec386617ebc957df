package main

import (
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/saylorsolutions/grokql/pkg/grok"
)

type patternsCommand struct {
	verbose *bool
}

func addPatternsCommand(app *kingpin.Application) {
	cmd := &patternsCommand{}
	patterns := app.Command("patterns", "List the built-in grok patterns.").Action(cmd.run)
	cmd.verbose = patterns.Flag("verbose", "Show pattern definitions.").Short('v').Bool()
}

func (cmd *patternsCommand) run(*kingpin.ParseContext) error {
	defs := grok.DefaultPatterns()
	lib := grok.NewLibrary()
	for _, name := range lib.Names() {
		if *cmd.verbose {
			fmt.Printf("%s\t%s\n", name, defs[name])
		} else {
			fmt.Println(name)
		}
	}
	return nil
}
