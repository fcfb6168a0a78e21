package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qiime2/q2-recipe/internal/recipe"
)

func lintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Validate the recipe document",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadRendered()
			if err != nil {
				return err
			}

			if err := l.Recipe.Validate(); err != nil {
				var verr *recipe.ValidationError
				if errors.As(err, &verr) {
					for _, problem := range verr.Problems {
						fmt.Printf("✗ %s\n", problem)
					}
					return fmt.Errorf("%d problem(s) found", len(verr.Problems))
				}
				return err
			}

			fmt.Printf("✓ %s %s is valid\n", l.Recipe.Package.Name, l.Recipe.Package.Version)
			return nil
		},
	}
}
