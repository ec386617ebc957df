// grokql ingests log lines from files, stdin, or syslog TCP/UDP listeners,
// parses them with grok patterns into typed records, filters and projects
// them with a SQL-like query, and writes the result as CSV, SQL text, or a
// SQLite file.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/hashicorp/go-hclog"
)

func main() {
	app := kingpin.New("grokql", "Parse, query, and export structured data from log streams.")
	logLevel := app.Flag("log-level", "Log level: trace, debug, info, warn, error.").Default("info").String()
	app.PreAction(func(*kingpin.ParseContext) error {
		hclog.SetDefault(hclog.New(&hclog.LoggerOptions{
			Name:  "grokql",
			Level: hclog.LevelFromString(*logLevel),
		}))
		return nil
	})

	addRunCommand(app)
	addCheckCommand(app)
	addPatternsCommand(app)
	kingpin.MustParse(app.Parse(os.Args[1:]))
}

func exitWithErr(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
