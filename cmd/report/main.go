// Command report writes the monthly booking workbook for every
// organization. It is meant to run from cron on the first of the month.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"assetbook/internal/config"
	"assetbook/internal/events"
	"assetbook/internal/report"
	"assetbook/internal/store"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	monthFlag := flag.String("month", "", "month to report on, YYYY-MM (default: previous month)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("ASSETBOOK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	month := time.Now().AddDate(0, -1, 0)
	if *monthFlag != "" {
		month, err = time.Parse("2006-01", *monthFlag)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid -month, expected YYYY-MM")
		}
	}

	st, err := store.New(cfg.Database.Path, events.NewBus())
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer st.Close()

	ctx := context.Background()
	orgs, err := st.ListOrganizations(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("list organizations error")
	}

	gen := report.NewGenerator(st, cfg.Report.Dir, &logger)
	for _, org := range orgs {
		if _, err := gen.Monthly(ctx, org.ID, month); err != nil {
			logger.Error().Err(err).Str("org_id", org.ID).Msg("report failed")
		}
	}

	if removed := gen.CleanupOldReports(cfg.Report.RetentionDays); removed > 0 {
		logger.Info().Int("removed", removed).Msg("old reports pruned")
	}
}
