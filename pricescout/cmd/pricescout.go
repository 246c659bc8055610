// Command-line interface for pricescout: scrape a sheet of product names
// locally or through a running server.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricescout/pricescout/config"
	"pricescout/pricescout/services/scraper"
	"pricescout/pricescout/utils/color"
	"pricescout/pricescout/utils/jsonutils"
	"pricescout/pricescout/utils/logging"
	"pricescout/pricescout/utils/types"

	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	logging.InitLogger()
	defer logging.Sync()
	cfg := config.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "scrape":
		err = runScrape(ctx, cfg, os.Args[2:])
	case "remote":
		err = runRemote(ctx, cfg, os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		logging.ErrorLogger.Error("pricescout cli failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, color.ColorError("error: "+err.Error()))
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("pricescout CLI usage:")
	fmt.Println("  pricescout scrape -in products.csv [-out prices.csv] [-json]")
	fmt.Println("  pricescout remote -server http://localhost:8000 -in products.csv [-out prices.csv] [-token T] [-json]")
}

type ioFlags struct {
	in, out string
	asJSON  bool
	noColor bool
}

func (f *ioFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.in, "in", "", "CSV with product names in column A (first row is a header)")
	fs.StringVar(&f.out, "out", "prices.csv", "output CSV (Product Name,Price,URL)")
	fs.BoolVar(&f.asJSON, "json", false, "also print the full results as JSON")
	fs.BoolVar(&f.noColor, "no-color", false, "disable colored output")
}

func runScrape(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("scrape", flag.ContinueOnError)
	var flags ioFlags
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	names, err := readNamesFile(flags)
	if err != nil {
		return err
	}

	orch, stopBrowser, err := scraper.Setup(cfg)
	if err != nil {
		return err
	}
	defer stopBrowser()

	batches := scraper.BatchCount(len(names), orch.ChunkSize())
	fmt.Println(color.ColorHeader(fmt.Sprintf("%d products in %d batches, about %s",
		len(names), batches, scraper.EstimateDuration(batches, cfg.SecondsPerBatch))))

	start := time.Now()
	results, err := orch.Run(ctx, names, func(b types.Batch, rs []types.ProductResult) {
		for j, r := range rs {
			printResult(b.Offset+j, r)
		}
	})
	if err != nil {
		return err
	}
	fmt.Println(color.ColorSuccess(fmt.Sprintf("done in %s", time.Since(start).Round(time.Second))))
	return writeOutputs(flags, results)
}

func runRemote(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("remote", flag.ContinueOnError)
	var flags ioFlags
	flags.register(fs)
	server := fs.String("server", "http://localhost"+cfg.HTTPAddr, "pricescout server base URL")
	token := fs.String("token", "", "bearer token when the server requires one")
	if err := fs.Parse(args); err != nil {
		return err
	}
	names, err := readNamesFile(flags)
	if err != nil {
		return err
	}

	client := &RemoteClient{BaseURL: *server, Token: *token, Group: cfg.ChunkSize}
	results, err := client.Search(ctx, names, func(done, total int) {
		fmt.Println(color.ColorInfo(fmt.Sprintf("%d/%d products", done, total)))
	})
	if err != nil {
		return err
	}
	for i, r := range results {
		printResult(i, r)
	}
	return writeOutputs(flags, results)
}

func readNamesFile(f ioFlags) ([]string, error) {
	if f.noColor {
		color.Disable()
	}
	if f.in == "" {
		return nil, fmt.Errorf("%w: -in is required", types.ErrInvalidRequest)
	}
	file, err := os.Open(f.in)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadNames(file)
}

func writeOutputs(f ioFlags, results []types.ProductResult) error {
	if f.asJSON {
		fmt.Println(jsonutils.ToJSON(results))
	}
	file, err := os.Create(f.out)
	if err != nil {
		return err
	}
	if err := WriteResults(file, results); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	fmt.Println(color.ColorInfo("wrote " + f.out))
	return nil
}

func printResult(i int, r types.ProductResult) {
	printResultTo(os.Stdout, i, r)
}

func printResultTo(w io.Writer, i int, r types.ProductResult) {
	switch {
	case r.Error != "":
		fmt.Fprintf(w, "%3d %s %s\n", i+1, r.ProductName, color.ColorError(r.Error))
	case len(r.Candidates) == 0:
		fmt.Fprintf(w, "%3d %s %s\n", i+1, r.ProductName, color.ColorWarning("no listings"))
	default:
		best := r.Candidates[0]
		fmt.Fprintf(w, "%3d %s %s %s\n", i+1, r.ProductName,
			color.ColorPrice(fmt.Sprintf("$%.2f", best.Price)), best.DetailURL)
	}
}
