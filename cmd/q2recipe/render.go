package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qiime2/q2-recipe/internal/render"
)

func renderCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Resolve all placeholders and print the rendered recipe",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadRendered()
			if err != nil {
				return err
			}

			if outputPath != "" {
				if err := render.WriteFile(outputPath, l.Rendered); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", outputPath)
				return nil
			}

			fmt.Print(string(l.Rendered))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the rendered recipe to a file instead of stdout")
	return cmd
}
