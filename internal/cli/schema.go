package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/partition"
)

func newSchemaCmd() *cobra.Command {
	var keyspace, table string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the CQL table definition used by the cassandra backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), partition.CQLSchema(keyspace, table))
			return err
		},
	}
	cmd.Flags().StringVar(&keyspace, "keyspace", "messenger", "keyspace name")
	cmd.Flags().StringVar(&table, "table", "rows", "table name")
	return cmd
}
