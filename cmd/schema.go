package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aisavvy/aisavvy/internal/schema"
)

var schemaRefresh bool

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the introspected database schema",
	Long: `Prints the schema snapshot as CREATE TABLE statements, exactly as the
model sees it, along with the snapshot's version hash.`,
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().BoolVar(&schemaRefresh, "refresh", false,
		"bypass the cached snapshot and re-introspect")
}

func runSchema(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	var snap *schema.Snapshot

	if schemaRefresh {
		snap, err = rt.catalog.Refresh(ctx)
	} else {
		snap, err = rt.catalog.Snapshot(ctx)
	}

	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "-- schema version %s (%d tables)\n\n",
		snap.Version, len(snap.Tables))
	fmt.Fprint(os.Stdout, snap.DDL())

	return nil
}
