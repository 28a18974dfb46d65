// Command report runs the full estimation pipeline offline and prints
// the resulting credible intervals, as a table or as JSON, without
// starting a server or touching a database.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/crashla/incident.report/internal/api"
	"github.com/crashla/incident.report/internal/config"
	"github.com/crashla/incident.report/internal/exposure"
	"github.com/crashla/incident.report/internal/incident"
)

var (
	exposurePath  = flag.String("exposure", "exposure.csv", "Path to the exposure ledger CSV")
	incidentsPath = flag.String("incidents", "incidents.json", "Path to the incident reports JSON")
	configPath    = flag.String("config", "", "Optional path to an analysis config JSON")
	metric        = flag.String("metric", "", "Only print rows for this metric key")
	asJSON        = flag.Bool("json", false, "Emit JSON instead of a table")
)

func run() error {
	ef, err := os.Open(*exposurePath)
	if err != nil {
		return fmt.Errorf("failed to open exposure ledger: %w", err)
	}
	defer ef.Close()
	ledger, err := exposure.ParseLedger(ef)
	if err != nil {
		return fmt.Errorf("exposure ledger %s: %w", *exposurePath, err)
	}

	inf, err := os.Open(*incidentsPath)
	if err != nil {
		return fmt.Errorf("failed to open incident reports: %w", err)
	}
	defer inf.Close()
	records, err := incident.ParseRecords(inf, config.Raters)
	if err != nil {
		return fmt.Errorf("incident reports %s: %w", *incidentsPath, err)
	}

	cfg := &config.Analysis{}
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			return err
		}
	}

	server, err := api.NewServer(nil, cfg, ledger, records)
	if err != nil {
		return err
	}

	estimates := server.Estimates()
	if *metric != "" {
		filtered := estimates[:0:0]
		for _, e := range estimates {
			if e.Metric == *metric {
				filtered = append(filtered, e)
			}
		}
		if len(filtered) == 0 {
			return fmt.Errorf("no estimates for metric %q", *metric)
		}
		estimates = filtered
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(estimates)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPANY\tMETRIC\tCOUNT\tMILES\tMPI LO\tMPI MEDIAN\tMPI HI")
	for _, e := range estimates {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.0f\t%.0f\t%.0f\t%.0f\n",
			e.Company, e.Metric, e.Count, e.Miles, e.MPI.Lo, e.MPI.Median, e.MPI.Hi)
	}
	return tw.Flush()
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
