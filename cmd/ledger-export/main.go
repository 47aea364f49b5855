// Command ledger-export loads the payment source once and writes the
// transactions, ledger, monthly stats and cohort matrix to a directory.
// With -import it copies the input file into the SQLite payments table
// instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kina2711/subscription-analytics/internal/cli"
	"github.com/kina2711/subscription-analytics/internal/config"
	"github.com/kina2711/subscription-analytics/internal/exporter"
	"github.com/kina2711/subscription-analytics/internal/log"
	"github.com/kina2711/subscription-analytics/internal/report"
	"github.com/kina2711/subscription-analytics/internal/sheets/memory"
)

type productList []string

func (p *productList) String() string { return strings.Join(*p, ",") }

func (p *productList) Set(v string) error {
	*p = append(*p, v)
	return nil
}

func main() {
	var (
		in       = flag.String("in", "", "payment file to read (CSV or XLSX); defaults to the configured source")
		sheet    = flag.String("sheet", "", "XLSX sheet name")
		out      = flag.String("out", "", "output directory (default OUTPUT_DIR)")
		doImport = flag.Bool("import", false, "import -in into the SQLite payments table instead of exporting")
		from     = flag.String("from", "", "first payment date to include")
		to       = flag.String("to", "", "last payment date to include")
		timeout  = flag.Duration("timeout", 5*time.Minute, "overall deadline")
		products productList
	)
	flag.Var(&products, "product", "product label to include (repeatable)")
	flag.Parse()

	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(func(c *config.Config) {
		if *in != "" {
			c.DataSource = config.SourceFile
			c.SourcePath = *in
			c.SourceSheet = *sheet
		}
		if *out != "" {
			c.OutputDir = *out
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var err error
	if *doImport {
		err = importPayments(ctx, cfg, logger, *in, *sheet)
	} else {
		err = export(ctx, cfg, logger, products, *from, *to)
	}
	if err != nil {
		logger.Error("ledger-export failed", log.FieldError, err)
		cancel()
		os.Exit(1)
	}
}

func importPayments(ctx context.Context, cfg *config.Config, logger *log.Logger, in, sheet string) error {
	if in == "" {
		return fmt.Errorf("-import requires -in")
	}
	t, err := memory.NewFile(in, sheet).Fetch(ctx)
	if err != nil {
		return err
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	n, err := repo.ImportTable(ctx, t, cfg.Roles())
	if err != nil {
		return err
	}
	logger.Info("Import complete", log.FieldOperation, log.OpImport, "rows", n, "db_path", cfg.SQLiteDBPath)
	return nil
}

func export(ctx context.Context, cfg *config.Config, logger *log.Logger, products []string, from, to string) error {
	f, err := report.ParseFilter(products, from, to)
	if err != nil {
		return err
	}

	pipeline, err := cli.BuildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	rep, snap, err := pipeline.Service.Report(ctx, f)
	if err != nil {
		return err
	}
	files, err := exporter.Export(cfg.OutputDir, snap.Dataset.Filter(f), rep, logger)
	if err != nil {
		return err
	}

	logger.Info("Export complete",
		log.FieldOperation, log.OpExport,
		log.FieldRunID, snap.RunID,
		log.FieldOutputDir, cfg.OutputDir,
		log.FieldRowsKept, snap.Report.RowsKept,
		"invalid_date", snap.Report.InvalidDate,
		"unresolved_duration", snap.Report.UnresolvedDuration,
		"files", len(files))
	return nil
}
