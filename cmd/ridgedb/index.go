package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage secondary indexes",
}

var indexCreateUnique bool

var indexCreateCmd = &cobra.Command{
	Use:   "create <collection> <field>",
	Short: "Create a secondary index on a field",
	Args:  cobra.ExactArgs(2),
	RunE:  runIndexCreate,
}

var indexDropCmd = &cobra.Command{
	Use:   "drop <collection> <name>",
	Short: "Drop a secondary index by name",
	Args:  cobra.ExactArgs(2),
	RunE:  runIndexDrop,
}

var indexListCmd = &cobra.Command{
	Use:   "list <collection>",
	Short: "List a collection's indexes",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexList,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexCreateCmd)
	indexCmd.AddCommand(indexDropCmd)
	indexCmd.AddCommand(indexListCmd)

	indexCreateCmd.Flags().BoolVar(&indexCreateUnique, "unique", false, "reject documents whose value at this field duplicates an existing one")
}

func runIndexCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	st, closer, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closer()

	ix, err := st.CreateIndex(ctx, args[0], args[1], indexCreateUnique)
	if err != nil {
		return err
	}
	printSuccess("created index %s on %s.%s (unique=%v)", ix.Name, args[0], ix.Field, ix.Unique)
	return nil
}

func runIndexDrop(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	st, closer, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closer()

	if err := st.DropIndex(ctx, args[0], args[1]); err != nil {
		return err
	}
	printSuccess("dropped index %s on %s", args[1], args[0])
	return nil
}

func runIndexList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	st, closer, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closer()

	indexes, err := st.ListIndexes(ctx, args[0])
	if err != nil {
		return err
	}

	if yamlOutput {
		return printYAML(indexes)
	}

	var rows [][]string
	for _, ix := range indexes {
		rows = append(rows, []string{ix.Name, ix.Field, fmt.Sprintf("%v", ix.Unique)})
	}
	printTable([]string{"NAME", "FIELD", "UNIQUE"}, rows)
	return nil
}
