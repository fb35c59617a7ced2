// cmd/guardian/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"guardian/internal/config"
	"guardian/internal/diff"
	"guardian/internal/logging"
	"guardian/internal/repo"
	"guardian/internal/scan"
	"guardian/internal/stash"
	"guardian/internal/store"
	"guardian/internal/watch"
)

var rootCmd = &cobra.Command{
	Use:   "guardian",
	Short: "Guardian is a project-local snapshot engine",
	Long: `Guardian takes content-addressed snapshots of a working tree, diffs any
two snapshots with rename and copy detection, and shelves uncommitted state
without relying on an external version control system.`,
}

func configPath(root string) string {
	return filepath.Join(root, repo.DirName, config.FileName)
}

func openRepo() (*repo.Repository, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}

	root, err := repo.FindRoot(cwd)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath(root))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.NewConsoleLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	return repo.Open(root, repo.Options{
		Author:         cfg.Author,
		IgnorePatterns: cfg.IgnorePatterns,
		Logger:         logger.WithComponent("cli"),
		CacheSize:      cfg.Store.CacheSize,
		Compression: store.CompressionOptions{
			MinSize: cfg.Store.CompressionMinSize,
			Level:   cfg.Store.CompressionLevel,
		},
		Threshold: cfg.Diff.SimilarityThreshold,
	})
}

func init() {
	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Initialize a new Guardian repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}

			r, err := repo.Init(dir, repo.Options{})
			if err != nil {
				return fmt.Errorf("initializing repository: %w", err)
			}
			defer r.Close()

			if _, err := os.Stat(configPath(dir)); os.IsNotExist(err) {
				if err := config.Default().Save(configPath(dir)); err != nil {
					return fmt.Errorf("writing default config: %w", err)
				}
			}

			fmt.Println("Initialized empty Guardian repository in", dir)
			return nil
		},
	}

	var snapshotCmd = &cobra.Command{
		Use:   "snapshot [message]",
		Short: "Capture the working tree as a new snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			result, err := r.CreateSnapshot(context.Background(), args[0], func(fraction float64, message string) {
				fmt.Printf("\r[%3.0f%%] %-50s", fraction*100, message)
			})
			fmt.Println()
			if err != nil {
				if errors.Is(err, repo.ErrConcurrentOperation) {
					return fmt.Errorf("another snapshot is running; retry shortly")
				}
				return fmt.Errorf("creating snapshot: %w", err)
			}

			if result.CommitID == "" {
				color.Red("Snapshot blocked by validation:")
				for _, issue := range result.Blocked {
					fmt.Printf("  [%s] %s %s\n", issue.Severity, issue.Path, issue.Message)
				}
				return nil
			}

			if result.Partial {
				color.Yellow("Snapshot is partial; skipped %d unreadable files", len(result.Skipped))
			}
			color.Green("Created snapshot %s", result.CommitID[:12])
			return nil
		},
	}

	var logCmd = &cobra.Command{
		Use:   "log",
		Short: "Show snapshot history",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			history, err := r.History("", limit)
			if err != nil {
				return fmt.Errorf("resolving history: %w", err)
			}
			if len(history) == 0 {
				fmt.Println("No snapshots yet")
				return nil
			}

			for _, info := range history {
				color.Yellow("snapshot %s", info.ID)
				fmt.Printf("Author: %s\nDate:   %s\n\n    %s\n\n",
					info.Author,
					time.Unix(info.Timestamp, 0).Format(time.RFC1123),
					info.Message)
			}
			return nil
		},
	}
	logCmd.Flags().Int("limit", 0, "maximum number of snapshots to show")

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show pending working-tree changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			scanner := scan.New(r.Root(), r.Index(), r.Rules(), nil)
			changes, err := scanner.Status(context.Background())
			if err != nil {
				return fmt.Errorf("scanning working tree: %w", err)
			}
			if len(changes) == 0 {
				fmt.Println("Working tree clean")
				return nil
			}

			for _, change := range changes {
				switch change.State {
				case scan.Untracked:
					color.Cyan("??  %s", change.Path)
				case scan.Modified:
					color.Yellow("M   %s", change.Path)
				case scan.Deleted:
					color.Red("D   %s", change.Path)
				}
			}
			return nil
		},
	}

	var diffCmd = &cobra.Command{
		Use:   "diff <old-commit> <new-commit>",
		Short: "Show file changes between two snapshots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			showLines, _ := cmd.Flags().GetBool("lines")

			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			changes, err := r.Diff().CompareCommits(args[0], args[1])
			if err != nil {
				return fmt.Errorf("comparing commits: %w", err)
			}
			if len(changes) == 0 {
				fmt.Println("No changes")
				return nil
			}

			for _, change := range changes {
				switch change.Type {
				case diff.Added:
					color.Green("A  %s", change.Path)
				case diff.Deleted:
					color.Red("D  %s", change.Path)
				case diff.Modified:
					color.Yellow("M  %s", change.Path)
				case diff.Renamed:
					color.Cyan("R%.0f %s -> %s", change.Similarity*100, change.Path, change.NewPath)
				case diff.Copied:
					color.Cyan("C%.0f %s -> %s", change.Similarity*100, change.Path, change.NewPath)
				}

				if !showLines || change.Type != diff.Modified {
					continue
				}
				lines, err := r.Diff().DiffTextFiles(change.OldHash, change.NewHash)
				if errors.Is(err, diff.ErrBinaryFile) {
					fmt.Println("   (binary content, no line diff)")
					continue
				}
				if err != nil {
					return fmt.Errorf("diffing %s: %w", change.Path, err)
				}
				fmt.Print(diff.FormatUnified(lines))
			}
			return nil
		},
	}
	diffCmd.Flags().Bool("lines", false, "show line-level diffs for modified text files")

	var watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Report file changes as they happen",
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, _ := cmd.Flags().GetDuration("interval")

			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			w, err := watch.New(r.Root(), r.Rules(), nil)
			if err != nil {
				return fmt.Errorf("starting watcher: %w", err)
			}
			defer w.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Println("Watching", r.Root(), "(Ctrl-C to stop)")
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					fmt.Println()
					return nil
				case <-ticker.C:
					dirty := w.Drain()
					sort.Strings(dirty)
					for _, path := range dirty {
						color.Yellow("~  %s", path)
					}
				}
			}
		},
	}
	watchCmd.Flags().Duration("interval", time.Second, "how often to report changes")

	var stashCmd = &cobra.Command{
		Use:   "stash",
		Short: "Shelve and restore uncommitted state",
	}

	var stashSaveCmd = &cobra.Command{
		Use:   "save [message]",
		Short: "Shelve the current working tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			ref, err := stash.New(r, nil).Save(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("saving stash: %w", err)
			}
			fmt.Println("Saved stash", ref)
			return nil
		},
	}

	var stashListCmd = &cobra.Command{
		Use:   "list",
		Short: "List stashes, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			entries, err := stash.New(r, nil).List()
			if err != nil {
				return fmt.Errorf("listing stashes: %w", err)
			}
			if len(entries) == 0 {
				fmt.Println("No stashes")
				return nil
			}

			for _, entry := range entries {
				fmt.Printf("%s  %s  %s\n",
					entry.Ref,
					time.Unix(entry.Timestamp, 0).Format(time.RFC3339),
					entry.Message)
			}
			return nil
		},
	}

	var stashApplyCmd = &cobra.Command{
		Use:   "apply <ref>",
		Short: "Restore a stash over the working tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			if err := stash.New(r, nil).Apply(args[0]); err != nil {
				return fmt.Errorf("applying stash: %w", err)
			}
			fmt.Println("Applied stash", args[0])
			return nil
		},
	}

	var stashDropCmd = &cobra.Command{
		Use:   "drop <ref>",
		Short: "Delete a stash ref",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			if err := stash.New(r, nil).Drop(args[0]); err != nil {
				return fmt.Errorf("dropping stash: %w", err)
			}
			fmt.Println("Dropped stash", args[0])
			return nil
		},
	}

	stashCmd.AddCommand(stashSaveCmd, stashListCmd, stashApplyCmd, stashDropCmd)
	rootCmd.AddCommand(initCmd, snapshotCmd, logCmd, statusCmd, diffCmd, watchCmd, stashCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
