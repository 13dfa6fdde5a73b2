package main

import (
	"runtime"

	"github.com/ppiankov/tablespectre/internal/checks"
	"github.com/spf13/cobra"
)

// NewVersionCmd prints the build version and the SQL dialects it can check.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
			cmd.Printf("go: %s\n", runtime.Version())
			cmd.Printf("platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			cmd.Printf("dialects: %s, %s, %s\n", checks.ClickHouse, checks.Postgres, checks.MySQL)
		},
	}
}
