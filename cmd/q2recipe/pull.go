package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qiime2/q2-recipe/internal/fetch"
	"github.com/qiime2/q2-recipe/internal/index"
)

// channelBaseURLs maps solver channel names to the base URLs they were
// loaded from, so pins can be turned back into artifact URLs. Names come
// from the providers themselves; deriving them any other way risks
// disagreeing with what the solver recorded on the pin.
func channelBaseURLs(providers []index.Provider) map[string]string {
	urls := make(map[string]string, len(providers))
	for _, p := range providers {
		if ch, ok := p.(*index.Channel); ok {
			urls[ch.Name()] = ch.URL()
		}
	}
	return urls
}

func pullCmd() *cobra.Command {
	var (
		channelURLs []string
		destDir     string
		workers     int
	)

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Solve the recipe's dependencies and download the pinned artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadRendered()
			if err != nil {
				return err
			}
			if err := l.Recipe.Validate(); err != nil {
				return err
			}

			providers, err := loadProviders(channelURLs, "")
			if err != nil {
				return err
			}
			urlsByChannel := channelBaseURLs(providers)

			runSpecs, err := l.Recipe.RunSpecs()
			if err != nil {
				return err
			}
			testSpecs, err := l.Recipe.TestSpecs()
			if err != nil {
				return err
			}

			result, err := solveJoint(providers, runSpecs, testSpecs)
			if err != nil {
				return err
			}
			if !result.Satisfiable() {
				reportSolve("run+test", result)
				return fmt.Errorf("dependency sets are not jointly satisfiable")
			}

			dest := index.NewLocalChannel(destDir)
			if err := dest.EnsureDir(); err != nil {
				return err
			}

			var jobs []fetch.Job
			for _, pin := range result.Pins {
				base, ok := urlsByChannel[pin.Channel]
				if !ok {
					log.Debug().Str("package", pin.Name).Str("channel", pin.Channel).Msg("no url for channel, skipping")
					continue
				}
				filename := fmt.Sprintf("%s-%s.tar.gz", pin.Name, pin.Version)
				jobs = append(jobs, fetch.Job{
					URL:      base + "/" + filename,
					DestPath: dest.ArtifactPath(filename),
				})
			}

			var failed int
			for _, res := range fetch.New(workers, log).Fetch(cmd.Context(), jobs) {
				if res.Error != nil {
					failed++
					fmt.Printf("✗ %s: %v\n", res.Job.URL, res.Error)
					continue
				}
				fmt.Printf("✓ %s\n", res.Job.DestPath)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d downloads failed", failed, len(jobs))
			}

			fmt.Printf("Pulled %d artifacts into %s\n", len(jobs), destDir)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&channelURLs, "channel", nil, "Channel URL to solve against (repeatable, priority order)")
	cmd.Flags().StringVar(&destDir, "dest", "./artifacts", "Directory receiving the downloaded artifacts")
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "Parallel download workers")
	return cmd
}
