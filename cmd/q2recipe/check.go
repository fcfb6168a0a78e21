package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/qiime2/q2-recipe/internal/depspec"
	"github.com/qiime2/q2-recipe/internal/index"
	"github.com/qiime2/q2-recipe/internal/lockfile"
	"github.com/qiime2/q2-recipe/internal/solver"
)

func checkCmd() *cobra.Command {
	var (
		channelURLs []string
		localDir    string
		lockPath    string
		strict      bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that run and test dependencies are jointly satisfiable",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadRendered()
			if err != nil {
				return err
			}
			if err := l.Recipe.Validate(); err != nil {
				return err
			}

			providers, err := loadProviders(channelURLs, localDir)
			if err != nil {
				return err
			}

			runSpecs, err := l.Recipe.RunSpecs()
			if err != nil {
				return err
			}
			testSpecs, err := l.Recipe.TestSpecs()
			if err != nil {
				return err
			}
			hostSpecs, err := l.Recipe.HostSpecs()
			if err != nil {
				return err
			}

			joint, err := solveJoint(providers, runSpecs, testSpecs)
			if err != nil {
				return err
			}
			host, err := solver.New(providers, log).Solve(hostSpecs)
			if err != nil {
				return err
			}

			reportSolve("run+test", joint)
			reportSolve("host", host)

			for _, result := range []*solver.Result{joint, host} {
				if !result.Satisfiable() {
					return fmt.Errorf("dependency sets are not jointly satisfiable")
				}
			}
			if strict && (len(joint.Missing) > 0 || len(host.Missing) > 0) {
				return fmt.Errorf("packages missing from all channels")
			}

			if lockPath != "" {
				return handleLock(lockPath, joint.Pins, append(runSpecs, testSpecs...))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&channelURLs, "channel", nil, "Channel URL to solve against (repeatable, priority order)")
	cmd.Flags().StringVar(&localDir, "local-channel", "", "Directory of built artifacts to treat as a channel")
	cmd.Flags().StringVar(&lockPath, "lock", "", "Write pins to this lockfile, or verify it if it exists")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when a package is missing from every channel")
	return cmd
}

// solveJoint merges the run and test.requires spec sets and solves them
// as one environment, the recipe's joint-satisfiability invariant.
func solveJoint(providers []index.Provider, runSpecs, testSpecs []depspec.Spec) (*solver.Result, error) {
	merged := append(append([]depspec.Spec{}, runSpecs...), testSpecs...)
	return solver.New(providers, log).Solve(merged)
}

func loadProviders(channelURLs []string, localDir string) ([]index.Provider, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("getting cache directory: %w", err)
	}
	cacheDir = filepath.Join(cacheDir, "q2recipe")

	var providers []index.Provider
	for _, url := range channelURLs {
		ch := index.NewChannel(url, cacheDir)
		log.Debug().Str("channel", ch.Name()).Msg("loading channel index")
		if err := ch.Load(); err != nil {
			return nil, fmt.Errorf("loading channel %s: %w", ch.Name(), err)
		}
		providers = append(providers, ch)
	}
	if localDir != "" {
		ch := index.NewLocalChannel(localDir)
		if err := ch.EnsureDir(); err != nil {
			return nil, err
		}
		if err := ch.Load(); err != nil {
			return nil, err
		}
		providers = append(providers, ch)
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no channels configured; use --channel or --local-channel")
	}
	return providers, nil
}

func reportSolve(label string, result *solver.Result) {
	for _, pin := range result.Pins {
		fmt.Printf("✓ [%s] %s %s (%s)\n", label, pin.Name, pin.Version, pin.Channel)
	}
	for _, name := range result.Missing {
		fmt.Printf("? [%s] %s not found in any channel\n", label, name)
	}
	for _, conflict := range result.Conflicts {
		fmt.Printf("✗ [%s] %s\n", label, conflict)
	}
}

func handleLock(path string, pins []solver.Pin, specs []depspec.Spec) error {
	if _, err := os.Stat(path); err == nil {
		existing, err := lockfile.Read(path)
		if err != nil {
			return err
		}
		if err := lockfile.Verify(existing, specs); err != nil {
			return err
		}
		fmt.Printf("✓ %s is up to date\n", path)
		return nil
	}

	if err := lockfile.Write(path, pins); err != nil {
		return err
	}
	fmt.Printf("Wrote %s with %d pins\n", path, len(pins))
	return nil
}
