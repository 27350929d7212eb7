package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "Inspect and manage collections",
}

var (
	collectionsListSince string
	collectionsDropYes   bool
)

var collectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections",
	Long: `List collections. --since accepts a natural-language time expression
("yesterday", "3 days ago", "last monday") and filters to collections
created at or after that point.`,
	RunE: runCollectionsList,
}

var collectionsStatsCmd = &cobra.Command{
	Use:   "stats <name>",
	Short: "Show a collection's metadata and document count",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionsStats,
}

var collectionsDropCmd = &cobra.Command{
	Use:   "drop <name>",
	Short: "Drop a collection and all its documents and indexes",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionsDrop,
}

func init() {
	rootCmd.AddCommand(collectionsCmd)
	collectionsCmd.AddCommand(collectionsListCmd)
	collectionsCmd.AddCommand(collectionsStatsCmd)
	collectionsCmd.AddCommand(collectionsDropCmd)

	collectionsListCmd.Flags().StringVar(&collectionsListSince, "since", "", "only list collections created at or after this natural-language time")
	collectionsDropCmd.Flags().BoolVar(&collectionsDropYes, "yes", false, "skip the confirmation prompt")
}

func parseSince(expr string) (time.Time, error) {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(expr, time.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing --since %q: %w", expr, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not understand --since %q", expr)
	}
	return r.Time, nil
}

func runCollectionsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	st, closer, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closer()

	names, err := st.ListCollections(ctx)
	if err != nil {
		return err
	}

	var since time.Time
	if collectionsListSince != "" {
		since, err = parseSince(collectionsListSince)
		if err != nil {
			return err
		}
	}

	var rows [][]string
	for _, name := range names {
		stats, err := st.GetStats(ctx, name)
		if err != nil {
			continue
		}
		if !since.IsZero() && stats.CreatedAt.Before(since) {
			continue
		}
		rows = append(rows, []string{stats.Name, stats.CreatedAt.Format(time.RFC3339), fmt.Sprintf("%d", stats.DocumentCount)})
	}

	printTable([]string{"NAME", "CREATED", "DOCUMENTS"}, rows)
	return nil
}

func runCollectionsStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	st, closer, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closer()

	stats, err := st.GetStats(ctx, args[0])
	if err != nil {
		return err
	}

	if yamlOutput {
		return printYAML(stats)
	}

	printHeading(stats.Name)
	fmt.Printf("created:         %s\n", stats.CreatedAt.Format(time.RFC3339))
	fmt.Printf("documents:       %d\n", stats.DocumentCount)
	fmt.Printf("schema version:  %d\n", stats.SchemaVersion)

	var rows [][]string
	for _, ix := range stats.Indexes {
		rows = append(rows, []string{ix.Name, ix.Field, fmt.Sprintf("%v", ix.Unique)})
	}
	fmt.Println()
	printTable([]string{"INDEX", "FIELD", "UNIQUE"}, rows)
	return nil
}

func runCollectionsDrop(cmd *cobra.Command, args []string) error {
	name := args[0]

	if !collectionsDropYes && !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("refusing to drop %q on a non-interactive terminal without --yes", name)
	}

	if !collectionsDropYes {
		confirmed := false
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Drop collection %q and all its documents?", name)).
				Affirmative("Drop it").
				Negative("Cancel").
				Value(&confirmed),
		))
		if err := form.Run(); err != nil {
			return err
		}
		if !confirmed {
			fmt.Println("aborted")
			return nil
		}
	}

	ctx := context.Background()
	st, closer, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closer()

	if err := st.DropCollection(ctx, name); err != nil {
		return err
	}
	printSuccess("dropped collection %q", name)
	return nil
}
