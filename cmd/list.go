// cmd/list.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vexaline/browsebench/api/schemas"
	"github.com/vexaline/browsebench/internal/tasks"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered benchmark tasks.",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog := tasks.NewCatalog()
		if err := catalog.Register(schemas.TaskEntry{
			Name:    "openended",
			Version: cfg.Harness.DefaultVersion,
			Type:    "openended",
			New:     func() schemas.Task { return &tasks.Openended{} },
		}); err != nil {
			return err
		}

		for _, entry := range catalog.All() {
			fmt.Printf("%-40s type=%s\n", tasks.CanonicalID(entry), entry.Type)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
