package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/macroplay/insights/analyze"
	"github.com/macroplay/insights/correlate"
	"github.com/macroplay/insights/export"
	"github.com/macroplay/insights/gemini"
	"github.com/macroplay/insights/ingest"
	"github.com/macroplay/insights/normalize"
	"github.com/macroplay/insights/notify"
	"github.com/macroplay/insights/segment"
	"github.com/macroplay/insights/server"
	"github.com/macroplay/insights/store"
)

// ============================================================================
// INSIGHTS CLI — prepaid subscriber analytics for tariffing + recharges
// ============================================================================

const version = "0.3.0"

func main() {
	tariffPath := flag.String("tarificacion", "", "Path to tariffing export (CSV or XLSX)")
	rechargePath := flag.String("recargas", "", "Path to recharge export (CSV or XLSX)")
	runSegment := flag.Bool("segment", false, "Run customer segmentation")
	criteria := flag.String("criteria", "", "Extra analyst guidance for AI segmentation")
	runInsights := flag.Bool("insights", false, "Generate the strategic AI report")
	todayStr := flag.String("today", "", "Reference day for recency metrics (YYYY-MM-DD, default: today)")
	format := flag.String("format", "json", "Output format: json, pretty, text, csv")
	outFile := flag.String("out", "", "Write output to file instead of stdout")
	dbPath := flag.String("db", "", "SQLite database path for persisting datasets and runs")
	serveAddr := flag.String("serve", "", "Run the HTTP API on this address (e.g. :8080)")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Insights — prepaid subscriber analytics for Macropay exports

Usage:
  insights --tarificacion tarifas.csv --recargas recargas.xlsx --format text
  insights --tarificacion tarifas.csv --recargas recargas.xlsx --segment --format csv --out segmentos.csv
  insights --tarificacion tarifas.csv --recargas recargas.xlsx --insights --format text
  insights --serve :8080 --db insights.db

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Environment:
  GEMINI_API_KEY       Enables AI segmentation plans and --insights
  INFOBIP_API_KEY      Enables WhatsApp campaigns (HTTP mode)
  INFOBIP_FROM         WhatsApp sender number
  INFOBIP_BASE_URL     Infobip API base URL

Formats:
  json      Full JSON output (default)
  pretty    Pretty-printed JSON
  text      Human-readable summary
  csv       Segmented records as CSV (ready for Sheets/Excel)
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("insights %s\n", version)
		os.Exit(0)
	}

	log, err := zap.NewProduction()
	if err != nil {
		fatalf("Failed to build logger: %v", err)
	}
	defer log.Sync()

	apiKey := os.Getenv("GEMINI_API_KEY")
	var gem *gemini.Client
	if apiKey != "" {
		gem = gemini.NewClient(gemini.Config{APIKey: apiKey, Logger: log})
	}

	var db *store.Store
	if *dbPath != "" {
		db, err = store.Open(*dbPath, log)
		if err != nil {
			fatalf("Failed to open database: %v", err)
		}
	}

	// ── Server mode ───────────────────────────────────────────────────────
	if *serveAddr != "" {
		var notifier *notify.Client
		if key := os.Getenv("INFOBIP_API_KEY"); key != "" {
			notifier = notify.NewClient(notify.Config{
				APIKey:  key,
				From:    os.Getenv("INFOBIP_FROM"),
				BaseURL: os.Getenv("INFOBIP_BASE_URL"),
				Logger:  log,
			})
		}
		srv := server.New(server.Config{
			Logger:   log,
			Store:    db,
			Gemini:   gem,
			Notifier: notifier,
		})
		if err := srv.Run(*serveAddr); err != nil {
			fatalf("Server failed: %v", err)
		}
		return
	}

	// ── CLI mode ──────────────────────────────────────────────────────────
	if *tariffPath == "" || *rechargePath == "" {
		fmt.Fprintln(os.Stderr, "Error: --tarificacion and --recargas are required")
		flag.Usage()
		os.Exit(1)
	}

	today := time.Now().UTC()
	if *todayStr != "" {
		today, err = time.Parse("2006-01-02", *todayStr)
		if err != nil {
			fatalf("Invalid --today value %q: %v", *todayStr, err)
		}
	}

	writer := os.Stdout
	if *outFile != "" {
		f, err := os.Create(*outFile)
		if err != nil {
			fatalf("Failed to create output file: %v", err)
		}
		defer f.Close()
		writer = f
	}

	bar := progressbar.NewOptions(4,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("procesando"),
		progressbar.OptionClearOnFinish(),
	)

	tariffRows, err := ingest.ReadFile(*tariffPath)
	if err != nil {
		fatalf("Failed to read tariffing file: %v", err)
	}
	bar.Add(1)

	rechargeRows, err := ingest.ReadFile(*rechargePath)
	if err != nil {
		fatalf("Failed to read recharge file: %v", err)
	}
	bar.Add(1)

	joined, err := correlate.Correlate(tariffRows, rechargeRows)
	if err != nil {
		fatalf("Correlation failed: %v", err)
	}
	bar.Add(1)

	records := analyze.Annotate(joined, today)
	result := analyze.Analyze(records)
	bar.Add(1)

	log.Info("dataset correlated",
		zap.Int("tariffRows", len(tariffRows)),
		zap.Int("rechargeRows", len(rechargeRows)),
		zap.Int("correlated", len(joined)))

	ctx := context.Background()

	var dataset *store.Dataset
	if db != nil {
		dataset, err = db.SaveDataset(ctx, fmt.Sprintf("%s + %s", *tariffPath, *rechargePath),
			*tariffPath, *rechargePath, result)
		if err != nil {
			fatalf("Failed to persist dataset: %v", err)
		}
	}

	// ── Segmentation ──────────────────────────────────────────────────────
	var outcome *segment.Outcome
	if *runSegment || *format == "csv" {
		var gen segment.TextGenerator
		if gem != nil {
			gen = gem
		}
		engine := segment.NewEngine(gen, log)
		outcome, err = engine.Run(ctx, records, *criteria)
		if err != nil {
			fatalf("Segmentation failed: %v", err)
		}
		if db != nil && dataset != nil {
			if _, err := db.SaveRun(ctx, dataset.ID, *criteria, outcome); err != nil {
				log.Warn("failed to persist segmentation run", zap.Error(err))
			}
		}
	}

	// ── Strategic report ──────────────────────────────────────────────────
	var report string
	if *runInsights {
		if gem == nil {
			fatalf("GEMINI_API_KEY required for --insights")
		}
		report, err = gem.StrategicReport(ctx, records, result)
		if err != nil {
			fatalf("Strategic report failed: %v", err)
		}
	}

	// ── Render output ─────────────────────────────────────────────────────
	switch *format {
	case "csv":
		if err := export.WriteCSV(writer, outcome.Records); err != nil {
			fatalf("CSV export failed: %v", err)
		}
	case "text":
		writeText(writer, result, outcome, report)
	default:
		out := cliOutput{
			Records:  len(records),
			Analysis: result,
			Insights: report,
		}
		if outcome != nil {
			out.Segmentation = &segmentationOutput{
				Source:   outcome.Source,
				Segments: outcome.Segments,
			}
		}
		writeJSON(writer, out, *format)
	}
}

// ============================================================================
// OUTPUT
// ============================================================================

type segmentationOutput struct {
	Source   string            `json:"source"`
	Segments []segment.Segment `json:"segments"`
}

type cliOutput struct {
	Records      int                 `json:"records"`
	Analysis     *analyze.Result     `json:"analysis"`
	Segmentation *segmentationOutput `json:"segmentation,omitempty"`
	Insights     string              `json:"insights,omitempty"`
}

func writeText(w *os.File, result *analyze.Result, outcome *segment.Outcome, report string) {
	fmt.Fprintf(w, "Registros correlacionados: %d\n", result.TotalRecords)

	for _, name := range []string{"Consumo MB", "Tarificacion", "Dias_Sin_Recarga"} {
		if stats, ok := result.Summary[name]; ok {
			fmt.Fprintf(w, "%s: total=%.2f promedio=%.2f max=%.2f min=%.2f\n",
				name, stats.Total, stats.Average, stats.Max, stats.Min)
		}
	}

	if result.StatusChart != nil && len(result.StatusChart.Buckets) > 0 {
		fmt.Fprintf(w, "\n%s\n", result.StatusChart.Title)
		for _, b := range result.StatusChart.Buckets {
			fmt.Fprintf(w, "  %-32s %6d registros  %10.2f MB\n", b.Status, b.Count, b.UsageMB)
		}
	}

	if result.DailyChart != nil && len(result.DailyChart.Points) > 0 {
		fmt.Fprintf(w, "\n%s\n", result.DailyChart.Title)
		for _, p := range result.DailyChart.Points {
			fmt.Fprintf(w, "  %s  %d\n", normalize.FormatDisplay(p.Date), p.Count)
		}
	}

	if outcome != nil {
		fmt.Fprintf(w, "\nSegmentación (%s):\n", outcome.Source)
		counts := make(map[string]int)
		for _, r := range outcome.Records {
			counts[r.Segment]++
		}
		for _, seg := range outcome.Segments {
			fmt.Fprintf(w, "  %-28s %6d  %s\n", seg.Name, counts[seg.Name], seg.Description)
		}
	}

	if report != "" {
		fmt.Fprintf(w, "\n%s\n", report)
	}
}

func writeJSON(w *os.File, v any, format string) {
	enc := json.NewEncoder(w)
	if format == "pretty" {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		fatalf("Failed to encode output: %v", err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
