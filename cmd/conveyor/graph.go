package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/serviceops/conveyor/pkg/graph"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the stage graph visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of the stage graph, including roles and guards per transition.`,
	Run: func(cmd *cobra.Command, args []string) {
		g, err := loadGraphFromFlags(cmd)
		if err != nil {
			fmt.Printf("Error loading graph: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(graph.Mermaid(g))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
