package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/qiime2/q2-recipe/internal/builder"
	"github.com/qiime2/q2-recipe/internal/fetch"
	"github.com/qiime2/q2-recipe/internal/source"
)

func buildCmd() *cobra.Command {
	var (
		workDir string
		prefix  string
		python  string
		timeout time.Duration
		workers int
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Stage the source and run the recipe's build script",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadRendered()
			if err != nil {
				return err
			}
			if err := l.Recipe.Validate(); err != nil {
				return err
			}

			if workDir == "" {
				workDir, err = os.MkdirTemp("", "q2recipe-build-*")
				if err != nil {
					return fmt.Errorf("creating work dir: %w", err)
				}
			}

			ctx := context.Background()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			stager := source.NewStager(fetch.New(workers, log), log)
			srcDir, err := stager.Stage(ctx, l.Recipe.Source, l.RecipeDir, workDir)
			if err != nil {
				return fmt.Errorf("staging source: %w", err)
			}

			result, err := builder.New(log).Run(ctx, builder.Spec{
				Script:  l.Recipe.Build.Script,
				SrcDir:  srcDir,
				Prefix:  prefix,
				Name:    l.Recipe.Package.Name,
				Version: l.Recipe.Package.Version,
				Python:  python,
			})
			if err != nil {
				return err
			}

			fmt.Printf("✓ Built %s %s in %s\n", l.Recipe.Package.Name, l.Recipe.Package.Version, result.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&workDir, "work-dir", "", "Work directory (default is a fresh temp dir)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Install prefix exported to the build script as PREFIX")
	cmd.Flags().StringVar(&python, "python", "python", "Interpreter exported to the build script as PYTHON")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Build timeout")
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "Parallel download workers for url sources")
	return cmd
}
