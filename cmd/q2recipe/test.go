package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/qiime2/q2-recipe/internal/harness"
)

func testCmd() *cobra.Command {
	var (
		python  string
		dir     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run the recipe's import checks and test commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadRendered()
			if err != nil {
				return err
			}
			if err := l.Recipe.Validate(); err != nil {
				return err
			}

			if len(l.Recipe.Test.Imports) == 0 && len(l.Recipe.Test.Commands) == 0 {
				return fmt.Errorf("recipe declares no test imports or commands")
			}

			ctx := context.Background()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			report, err := harness.New(log).Run(ctx, harness.Config{
				Python:   python,
				Imports:  l.Recipe.Test.Imports,
				Commands: l.Recipe.Test.Commands,
				Dir:      dir,
				Env: map[string]string{
					"PKG_NAME":    l.Recipe.Package.Name,
					"PKG_VERSION": l.Recipe.Package.Version,
				},
			})
			if err != nil {
				return err
			}

			for _, step := range report.Steps {
				mark := "✓"
				if !step.OK {
					mark = "✗"
				}
				fmt.Printf("%s %s %s\n", mark, step.Kind, step.Name)
			}

			if failed := report.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d of %d test step(s) failed", len(failed), len(report.Steps))
			}
			fmt.Printf("✓ %s %s passed all test steps\n", l.Recipe.Package.Name, l.Recipe.Package.Version)
			return nil
		},
	}

	cmd.Flags().StringVar(&python, "python", "python", "Interpreter used for import checks")
	cmd.Flags().StringVar(&dir, "dir", "", "Working directory for test commands")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Minute, "Test timeout")
	return cmd
}
