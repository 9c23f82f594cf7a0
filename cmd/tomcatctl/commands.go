package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tomcat/internal/config"
	"tomcat/internal/contextbuf"
	"tomcat/internal/dates"
	"tomcat/internal/dues"
	"tomcat/internal/entity"
	"tomcat/internal/intent"
	"tomcat/internal/model"
	"tomcat/internal/pending"
	"tomcat/internal/router"
	"tomcat/internal/storage"
)

var (
	channelID string
	feeding   bool
	limit     int
	mailDir   string
)

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Print the intent a message would be classified as",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vocab, err := config.LoadVocab(vocabPath)
		if err != nil {
			return err
		}
		log := logger(cmd.ErrOrStderr())
		clock := dates.New(time.Local)
		buf := contextbuf.New(contextbuf.DefaultCapacity)

		var feedingChannels []string
		if feeding {
			feedingChannels = []string{channelID}
		}
		cls := intent.New(intent.Config{FeedingChannels: feedingChannels},
			entity.New(vocab.Vocabulary(), nil, entity.Thresholds{}, log), clock, buf, pending.New(), nil, log)
		r := router.New(buf, cls, discard{}, log)

		in := r.HandleMessage(cmd.Context(), model.Message{
			ID:        "cli",
			ChannelID: channelID,
			GuildID:   "cli",
			UserID:    "cli",
			UserName:  "cli",
			Content:   strings.Join(args, " "),
			CreatedAt: time.Now(),
		})

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "intent\t%s\n", in.Kind)
		fmt.Fprintf(w, "confidence\t%.2f\n", in.Confidence)
		if in.CatName != "" {
			fmt.Fprintf(w, "cat\t%s\n", in.CatName)
		}
		if len(in.Stations) > 0 {
			fmt.Fprintf(w, "stations\t%s\n", strings.Join(in.Stations, ", "))
		} else if in.Station != "" {
			fmt.Fprintf(w, "station\t%s\n", in.Station)
		}
		if len(in.Dates) > 0 {
			fmt.Fprintf(w, "dates\t%s\n", strings.Join(in.Dates, ", "))
		}
		return w.Flush()
	},
}

// discard swallows dispatched intents so classify has no side effects.
type discard struct{}

func (discard) Dispatch(context.Context, model.Intent, model.Message) {}

var catsCmd = &cobra.Command{
	Use:   "cats",
	Short: "Manage the cat catalog",
}

// catRecord is one cat in an import file.
type catRecord struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Behavior    string `yaml:"behavior"`
	Location    string `yaml:"location"`
	Birthday    string `yaml:"birthday"`
	TNRStatus   string `yaml:"tnr_status"`
	Sex         string `yaml:"sex"`
	Nicknames   string `yaml:"nicknames"`
	Comments    string `yaml:"comments"`
}

var catsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Create or update cats from a YAML list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		var recs []catRecord
		if err := yaml.Unmarshal(data, &recs); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		store, err := storage.NewSQLite(dbPath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		ctx := cmd.Context()
		for _, r := range recs {
			if strings.TrimSpace(r.Name) == "" {
				return fmt.Errorf("cat without a name in %s", args[0])
			}
			c := &model.CatProfile{
				Name:                r.Name,
				PhysicalDescription: r.Description,
				Behavior:            r.Behavior,
				Location:            r.Location,
				Birthday:            r.Birthday,
				TNRStatus:           r.TNRStatus,
				Sex:                 r.Sex,
				Nicknames:           r.Nicknames,
				Comments:            r.Comments,
			}
			if existing, err := store.GetCatByName(ctx, r.Name); err == nil {
				c.ID = existing.ID
				c.LastSeenDate, c.LastSeenTime, c.LastSeenBy = existing.LastSeenDate, existing.LastSeenTime, existing.LastSeenBy
			}
			if err := store.UpsertCat(ctx, c); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "#%d %s\n", c.ID, c.Name)
		}
		return nil
	},
}

var catsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cats with their profile ids",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := storage.NewSQLite(dbPath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		cats, err := store.ListCats(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tLOCATION\tLAST SEEN")
		for _, c := range cats {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.ID, c.Name, c.Location, c.LastSeenDate)
		}
		return w.Flush()
	},
}

var subsCmd = &cobra.Command{
	Use:   "subs",
	Short: "Inspect the substitution ledger",
}

var subsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent substitutions, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := storage.NewSQLite(dbPath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		subs, err := store.ListSubs(cmd.Context(), limit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tSTATION\tDATES\tREQUESTER\tASSIGNEE")
		for _, s := range subs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				s.ID, s.Status, s.Station, strings.Join(s.Dates, ","), s.Requester, s.Assignee)
		}
		return w.Flush()
	},
}

var duesCmd = &cobra.Command{
	Use:   "dues",
	Short: "Dues payment tools",
}

var duesIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest payment notifications from the mail drop once",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if mailDir == "" {
			return fmt.Errorf("--dir or DUES_MAIL_DIR is required")
		}
		vocab, err := config.LoadVocab(vocabPath)
		if err != nil {
			return err
		}
		store, err := storage.NewSQLite(dbPath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		n, err := dues.NewIngester(store, vocab.Members, mailDir, logger(cmd.ErrOrStderr())).Ingest(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d new payment(s)\n", n)
		return nil
	},
}

var duesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested payments, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := storage.NewSQLite(dbPath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		payments, err := store.ListPayments(cmd.Context(), limit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PROVIDER\tAMOUNT\tPAYER\tSTATUS\tMEMBER\tSCORE")
		for _, p := range payments {
			fmt.Fprintf(w, "%s\t%d.%02d %s\t%s\t%s\t%s\t%.2f\n",
				p.Provider, p.AmountCents/100, p.AmountCents%100, p.Currency,
				p.PayerName, p.Status, p.MatchedUserID, p.MatchScore)
		}
		return w.Flush()
	},
}

func init() {
	classifyCmd.Flags().StringVar(&channelID, "channel", "cli", "channel id the message is posted in")
	classifyCmd.Flags().BoolVar(&feeding, "feeding", false, "treat the channel as a feeding channel")
	subsListCmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	duesListCmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	duesIngestCmd.Flags().StringVar(&mailDir, "dir", os.Getenv("DUES_MAIL_DIR"), "mail drop directory")
}

func logger(w io.Writer) *slog.Logger {
	lvl := slog.LevelWarn
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
