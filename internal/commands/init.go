package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledgerfeed/internal/config"
	"github.com/cleared-dev/ledgerfeed/internal/store/csvtable"
)

// starterHeader is the header of the example feed's destination table.
var starterHeader = []string{"Date", "Description", "Amount"}

func newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new ledgerfeed project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.OutOrStdout(), absDir)
		},
	}

	return cmd
}

func runInit(out io.Writer, dir string) error {
	configPath := filepath.Join(dir, DefaultConfigFile)
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}

	cfg := config.Default()
	feed := cfg.Feeds[0]
	workbook := cfg.TableStores["workbook"]

	// Create directory structure.
	dirs := []string{
		filepath.Dir(cfg.RunLog),
		feed.Source,
		feed.Archive,
		workbook.Path,
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	// Write ledgerfeed.yaml.
	if err := config.Save(configPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Create the example feed's destination table.
	tables := csvtable.New(filepath.Join(dir, workbook.Path))
	if err := tables.Create(feed.Table, starterHeader); err != nil {
		return fmt.Errorf("creating table %s: %w", feed.Table, err)
	}

	fmt.Fprintf(out, "Initialized ledgerfeed project at %s\n", dir)
	fmt.Fprintf(out, "Drop %s exports into %s and run: ledgerfeed run -c %s\n", feed.Table, filepath.Join(dir, feed.Source), configPath)
	return nil
}
