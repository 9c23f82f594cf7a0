package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"tomcat/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <up|up-one|up-to|down|status|version|reset> [version]",
	Short: "Apply or inspect schema migrations",
	Long: `migrate runs the embedded goose migrations against the database.

The bot applies pending migrations on start; this command is for rolling
back, checking status, or preparing a database ahead of a deploy.`,
	ValidArgs: []string{"up", "up-one", "up-to", "down", "status", "version", "reset"},
	Args:      cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		op := args[0]
		if (op == "up-to") != (len(args) == 2) {
			return fmt.Errorf("up-to takes exactly one version; other commands take none")
		}

		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("create data directory: %w", err)
			}
		}
		db, err := sql.Open("sqlite", dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer func() { _ = db.Close() }()

		if err := migrations.Setup(); err != nil {
			return err
		}

		switch op {
		case "up":
			err = goose.Up(db, ".")
		case "up-one":
			err = goose.UpByOne(db, ".")
		case "up-to":
			v, perr := strconv.ParseInt(args[1], 10, 64)
			if perr != nil {
				return fmt.Errorf("bad version %q: %w", args[1], perr)
			}
			err = goose.UpTo(db, ".", v)
		case "down":
			err = goose.Down(db, ".")
		case "status":
			err = goose.Status(db, ".")
		case "version":
			err = goose.Version(db, ".")
		case "reset":
			err = goose.Reset(db, ".")
		default:
			return fmt.Errorf("unknown migrate command %q", op)
		}
		if err != nil {
			return fmt.Errorf("migrate %s: %w", op, err)
		}
		return nil
	},
}
