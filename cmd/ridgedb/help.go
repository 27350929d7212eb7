package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var helpTopics = map[string]string{
	"backends": `# Backends

ridgedb can run against three kv.Store implementations, chosen by the
` + "`backend`" + ` config field:

- **memory** — an in-process ordered map (` + "`internal/kv/memstore`" + `). No
  durability; every restart starts empty. Default, and what every unit
  test in this repo runs against.
- **sqlite** — an embedded, file-backed database via
  ` + "`internal/kv/sqlstore.NewSQLite`" + `. Durable across restarts, single
  process.
- **dolt** — a networked ` + "`dolt sql-server`" + ` over its MySQL-wire endpoint
  via ` + "`internal/kv/sqlstore.NewDolt`" + `. Durable and shareable across
  processes, at the cost of a round trip per operation.

Switching backends requires a restart: the daemon reads ` + "`backend`" + ` and
` + "`dsn`" + ` once at startup and does not hot-reload them.`,

	"indexes": `# Indexes

Every collection has an implicit, unique, undroppable index on ` + "`_id`" + `.
Secondary indexes are single-field only (no compound or multi-key
indexes in this build) and can optionally be declared unique, in which
case inserts and updates that would duplicate an existing value are
rejected.

` + "`ridgedb index create <collection> <field> [--unique]`" + ` builds the index
over whatever documents already exist in the collection before
accepting new writes against it.`,
}

var helpTopicCmd = &cobra.Command{
	Use:   "help [topic]",
	Short: "Show long-form help on a topic",
	RunE:  runHelpTopic,
}

func init() {
	rootCmd.AddCommand(helpTopicCmd)
}

func runHelpTopic(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		fmt.Println("topics:")
		for name := range helpTopics {
			fmt.Println("  " + name)
		}
		return nil
	}
	topic, ok := helpTopics[args[0]]
	if !ok {
		return fmt.Errorf("no such help topic %q", args[0])
	}
	fmt.Println(renderHelpMarkdown(topic))
	return nil
}
