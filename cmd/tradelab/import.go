package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/newthinker/tradelab/internal/history"
	"github.com/newthinker/tradelab/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importDB string

var importCmd = &cobra.Command{
	Use:   "import-bars [csv files or directories...]",
	Short: "Import CSV bar files into a SQLite bar database",
	Long:  "Load <TICKER>.csv files and upsert their bars into the SQLite database used by data.source=sqlite",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVar(&importDB, "db", "", "SQLite database path (required)")
	importCmd.MarkFlagRequired("db")

	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug, "info")
	defer log.Sync()

	files, err := csvFiles(args)
	if err != nil {
		return err
	}

	db, err := history.OpenSQLite(importDB)
	if err != nil {
		return fmt.Errorf("opening bar database: %w", err)
	}
	defer db.Close()

	ctx, cancel := signalContext()
	defer cancel()

	total := 0
	for _, f := range files {
		ticker := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		bars, err := history.ReadCSVFile(f)
		if err != nil {
			return fmt.Errorf("reading %s: %w", f, err)
		}
		n, err := db.Import(ctx, ticker, bars)
		if err != nil {
			return fmt.Errorf("importing %s: %w", ticker, err)
		}
		total += n
		log.Info("imported bars", zap.String("ticker", ticker), zap.Int("bars", n))
	}

	fmt.Printf("Imported %d bars from %d files into %s\n", total, len(files), importDB)
	return nil
}

// csvFiles expands directories to the .csv files they contain
func csvFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.csv"))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no csv files found")
	}
	sort.Strings(files)
	return files, nil
}
