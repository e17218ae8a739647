package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"saleschecker/internal/cli"
	"saleschecker/internal/config"
	"saleschecker/internal/model"
	"saleschecker/internal/repo"
	"saleschecker/pkg/cache"
	"saleschecker/pkg/csvimport"
	"saleschecker/pkg/marketplace"
	"saleschecker/pkg/report"

	// Imports for side-effects: register marketplace connectors
	_ "saleschecker/pkg/marketplace/mercari"
	_ "saleschecker/pkg/marketplace/rakuten"
	"saleschecker/pkg/marketplace/yahoo"

	// Postgres driver for database/sql
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	fetchTimeout = 10 * time.Minute
	dateLayout   = "2006-01-02"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	var (
		configPath = flag.String("config", "etc/saleschecker.yaml", "application config file")
		days       = flag.Int("days", 30, "report over the last N days (ignored when --start is set)")
		startStr   = flag.String("start", "", "report range start (YYYY-MM-DD)")
		endStr     = flag.String("end", "", "report range end (YYYY-MM-DD, defaults to today)")
		topN       = flag.Int("top", 10, "top product ranking size")
		csvFile    = flag.String("csv", "", "merge records from a CSV export file")
		csvSource  = flag.String("csv-source", "csv", "source name for records imported via --csv")

		fromDB   = flag.Bool("from-db", false, "report from records stored in Postgres instead of fetching")
		dbSource = flag.String("db-source", "", "limit --from-db to one source")

		noCache    = flag.Bool("no-cache", false, "bypass the fetch cache")
		clearCache = flag.Bool("clear-cache", false, "clear the fetch cache and exit")
		testConns  = flag.Bool("test", false, "test every connection and exit")

		yahooAuthURL  = flag.Bool("yahoo-auth-url", false, "print the authorization URL for yahoo connections and exit")
		yahooCode     = flag.String("yahoo-code", "", "exchange an authorization code for yahoo tokens and exit")
		yahooRedirect = flag.String("yahoo-redirect-uri", "", "redirect URI for the yahoo authorization flow")
	)
	flag.Parse()

	log.Println("[main] Starting sales report...")

	appCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[main] Failed to load config %s: %v", *configPath, err)
	}
	for _, line := range cli.ConfigSummaryLines(appCfg) {
		log.Printf("  - %s", line)
	}

	store := cache.New(appCfg.Cache.Dir, cache.WithTTL(appCfg.Cache.TTL()))
	if *clearCache {
		removed, err := store.Clear()
		if err != nil {
			log.Fatalf("[main] Failed to clear cache: %v", err)
		}
		log.Printf("[main] Cleared %d cache entries", removed)
		return
	}

	marketCfg := appCfg.Marketplace.Value
	if marketCfg == nil {
		log.Fatalf("[main] No marketplace config; set marketplace.file in %s", *configPath)
	}
	connectors, err := marketCfg.BuildConnectors()
	if err != nil {
		log.Fatalf("[main] Failed to build connectors: %v", err)
	}
	log.Printf("[main] Built %d connectors", len(connectors))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *yahooAuthURL || *yahooCode != "" {
		runYahooAuth(ctx, connectors, *yahooAuthURL, *yahooCode, *yahooRedirect)
		return
	}
	if *testConns {
		runConnectionTests(ctx, connectors)
		return
	}

	start, end, err := resolveRange(*startStr, *endStr, *days)
	if err != nil {
		log.Fatalf("[main] %v", err)
	}
	log.Printf("[main] Report range: %s .. %s", start.Format(dateLayout), end.Format(dateLayout))

	var recordsRepo *repo.RecordsRepo
	if appCfg.Postgres.DSN != "" {
		conn := sqlx.NewSqlConn("pgx", appCfg.Postgres.DSN)
		recordsRepo, err = repo.NewRecordsRepo(model.NewSalesRecordsModel(conn))
		if err != nil {
			log.Fatalf("[main] Failed to build records repo: %v", err)
		}
	}

	var records []marketplace.SalesRecord
	if *fromDB {
		if recordsRepo == nil {
			log.Fatalf("[main] --from-db requires postgres.dsn in %s", *configPath)
		}
		queryCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		records, err = recordsRepo.RangeBySource(queryCtx, *dbSource, start, end)
		if err != nil {
			log.Fatalf("[main] Failed to read stored records: %v", err)
		}
		log.Printf("[main] Loaded %d stored records", len(records))
	} else {
		opts := []marketplace.ServiceOption{}
		if !*noCache {
			opts = append(opts, marketplace.WithCache(store))
		}
		if recordsRepo != nil {
			opts = append(opts, marketplace.WithPersistence(recordsRepo))
		}
		service := marketplace.NewService(connectors, opts...)

		fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()

		fetchStart := time.Now()
		result, err := service.FetchRange(fetchCtx, start, end)
		if err != nil {
			log.Fatalf("[main] Fetch failed: %v", err)
		}
		log.Printf("[main] Fetched %d records from %d sources in %dms",
			len(result.Records), len(connectors)-len(result.Failed), time.Since(fetchStart).Milliseconds())
		for _, failed := range result.Failed {
			log.Printf("[main] [WARN] source %s failed: %v", failed.Source, failed.Err)
		}
		records = result.Records
	}
	if *csvFile != "" {
		imported, err := csvimport.ParseFile(*csvFile, *csvSource)
		if err != nil {
			log.Fatalf("[main] CSV import failed: %v", err)
		}
		log.Printf("[main] Imported %d records from %s", len(imported), *csvFile)
		records = append(records, imported...)
	}

	printReport(records, *topN)
}

// resolveRange turns the flag combination into an inclusive local-time range
// spanning whole days.
func resolveRange(startStr, endStr string, days int) (time.Time, time.Time, error) {
	now := time.Now()
	end := now
	if endStr != "" {
		parsed, err := time.ParseInLocation(dateLayout, endStr, time.Local)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --end %q: %w", endStr, err)
		}
		end = parsed
	}
	end = time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, time.Local)

	var start time.Time
	if startStr != "" {
		parsed, err := time.ParseInLocation(dateLayout, startStr, time.Local)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --start %q: %w", startStr, err)
		}
		start = parsed
	} else {
		if days <= 0 {
			return time.Time{}, time.Time{}, fmt.Errorf("--days must be positive, got %d", days)
		}
		start = end.AddDate(0, 0, -(days - 1))
	}
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.Local)

	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("range start %s is after end %s", start.Format(dateLayout), end.Format(dateLayout))
	}
	return start, end, nil
}

// runConnectionTests probes every connection and reports pass/fail.
func runConnectionTests(ctx context.Context, connectors []marketplace.Connector) {
	failures := 0
	for _, conn := range connectors {
		start := time.Now()
		err := conn.TestConnection(ctx)
		elapsed := time.Since(start)
		if err != nil {
			failures++
			log.Printf("[test.%s] [ERROR] %v, took %dms", conn.Name(), err, elapsed.Milliseconds())
			continue
		}
		log.Printf("[test.%s] [OK] kind=%s, took %dms", conn.Name(), conn.Kind(), elapsed.Milliseconds())
	}
	if failures > 0 {
		os.Exit(1)
	}
}

// runYahooAuth drives the out-of-band OAuth2 authorization flow for every
// yahoo connection.
func runYahooAuth(ctx context.Context, connectors []marketplace.Connector, printURL bool, code, redirectURI string) {
	found := false
	for _, conn := range connectors {
		client, ok := conn.(*yahoo.Client)
		if !ok {
			continue
		}
		found = true
		session := client.Session()

		if printURL {
			fmt.Printf("%s: %s\n", conn.Name(), session.AuthURL(redirectURI, conn.Name()))
			continue
		}
		if err := session.Authenticate(ctx, code, redirectURI); err != nil {
			log.Fatalf("[main] Authorization for %s failed: %v", conn.Name(), err)
		}
		log.Printf("[main] Authorized connection %s (token state: %s)", conn.Name(), session.State())
	}
	if !found {
		log.Println("[main] No yahoo connections configured")
	}
}

// printReport writes the aggregated report to stdout.
func printReport(records []marketplace.SalesRecord, topN int) {
	summary := report.Summarize(records)

	fmt.Println()
	fmt.Println("=== Summary ===")
	fmt.Printf("Orders:        %d\n", summary.OrderCount)
	fmt.Printf("Items:         %d\n", summary.ItemCount)
	fmt.Printf("Gross sales:   ¥%s\n", formatYen(summary.GrossSales))
	fmt.Printf("Net sales:     ¥%s\n", formatYen(summary.NetSales))
	fmt.Printf("Average order: ¥%s\n", formatYen(summary.AverageOrder))
	if !summary.FirstOrderAt.IsZero() {
		fmt.Printf("Period:        %s .. %s\n",
			summary.FirstOrderAt.Format("2006-01-02 15:04"),
			summary.LastOrderAt.Format("2006-01-02 15:04"))
	}
	for source, net := range summary.SalesBySource {
		fmt.Printf("  %-12s ¥%s\n", source, formatYen(net))
	}

	fmt.Println()
	fmt.Println("=== Daily sales ===")
	for _, bucket := range report.DailySales(records) {
		fmt.Printf("%s  orders=%-4d items=%-5d ¥%s\n", bucket.Label, bucket.OrderCount, bucket.ItemCount, formatYen(bucket.NetSales))
	}

	fmt.Println()
	fmt.Println("=== Weekday sales ===")
	for _, bucket := range report.WeekdaySales(records) {
		fmt.Printf("%s  orders=%-4d ¥%s\n", bucket.Label, bucket.OrderCount, formatYen(bucket.NetSales))
	}

	fmt.Println()
	fmt.Println("=== Hourly sales ===")
	for _, bucket := range report.HourlySales(records) {
		if bucket.OrderCount == 0 {
			continue
		}
		fmt.Printf("%s  orders=%-4d ¥%s\n", bucket.Label, bucket.OrderCount, formatYen(bucket.NetSales))
	}

	fmt.Println()
	fmt.Printf("=== Top %d products ===\n", topN)
	for rank, product := range report.TopProducts(records, topN) {
		name := product.ItemName
		if name == "" {
			name = product.ItemID
		}
		fmt.Printf("%2d. %-40s qty=%-5d ¥%s\n", rank+1, name, product.Quantity, formatYen(product.Subtotal))
	}

	fmt.Println()
	fmt.Println("=== Order heatmap (hour x weekday, Mon..Sun) ===")
	heatmap := report.Heatmap(records)
	fmt.Println("       Mon  Tue  Wed  Thu  Fri  Sat  Sun")
	for hour, row := range heatmap {
		total := int64(0)
		for _, count := range row {
			total += count
		}
		if total == 0 {
			continue
		}
		fmt.Printf("%02d:00 ", hour)
		for _, count := range row {
			fmt.Printf("%4d ", count)
		}
		fmt.Println()
	}
}

// formatYen renders an amount with thousands separators.
func formatYen(amount int64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	groups = append([]string{digits}, groups...)
	out := strings.Join(groups, ",")
	if negative {
		out = "-" + out
	}
	return out
}
