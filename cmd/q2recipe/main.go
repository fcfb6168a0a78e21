package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	recipePath  string
	variantPath string
	setVars     []string
	verbose     bool

	log zerolog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "q2recipe",
		Short:   "Render, lint, solve, build and test package build recipes",
		Long:    "q2recipe consumes conda-style build recipes for QIIME 2 plugin packages: it resolves version placeholders from a variant config and the project metadata, validates the recipe, checks that the run and test dependency sets are jointly satisfiable against package channels, and delegates the declared build and test steps.",
		Version: "0.1.0",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&recipePath, "recipe", "r", "./recipe.yaml", "Recipe file path")
	rootCmd.PersistentFlags().StringVar(&variantPath, "variant", "", "Variant config file with build-time version variables")
	rootCmd.PersistentFlags().StringArrayVar(&setVars, "set", nil, "Override a variant variable (key=value, repeatable)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(renderCmd())
	rootCmd.AddCommand(lintCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(pullCmd())
	rootCmd.AddCommand(buildCmd())
	rootCmd.AddCommand(testCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
