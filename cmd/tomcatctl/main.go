package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	dbPath    string
	vocabPath string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "tomcatctl",
	Short: "Operator tools for the TomCat bot",
	Long: `tomcatctl migrates, inspects and seeds the TomCat database and
dry-runs the message classifier without connecting to Discord.

Environment Variables:
  DATABASE_PATH  - SQLite database (default ./data/tomcat.db)
  VOCAB_PATH     - Vocabulary YAML (default built-in)`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", envOrDefault("DATABASE_PATH", "./data/tomcat.db"), "path to sqlite database")
	rootCmd.PersistentFlags().StringVar(&vocabPath, "vocab", os.Getenv("VOCAB_PATH"), "vocabulary file (default built-in)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(catsCmd)
	rootCmd.AddCommand(subsCmd)
	rootCmd.AddCommand(duesCmd)
	rootCmd.AddCommand(migrateCmd)

	catsCmd.AddCommand(catsImportCmd)
	catsCmd.AddCommand(catsListCmd)
	subsCmd.AddCommand(subsListCmd)
	duesCmd.AddCommand(duesIngestCmd)
	duesCmd.AddCommand(duesListCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
