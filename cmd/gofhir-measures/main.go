// Package main implements the gofhir-measures CLI tool.
// It evaluates a patient cohort against a quality-measure definition for a
// measurement period and reports the population analysis.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	qm "github.com/gofhir/measures"
	"github.com/gofhir/measures/aggregate"
	"github.com/gofhir/measures/engine"
	"github.com/gofhir/measures/loader"
	"github.com/gofhir/measures/pkg/logger"
	"github.com/gofhir/measures/trend"
	"github.com/gofhir/measures/valueset"
)

const (
	version = "0.1.0"
	usage   = `gofhir-measures - Quality Measure Population Analytics

Usage:
  gofhir-measures [options] -measure <measure.json> -patients <cohort.ndjson>

The cohort file holds one patient snapshot JSON document per line. With
-fhir, each line is a FHIR Bundle instead.

Examples:
  gofhir-measures -measure cms165.json -patients cohort.ndjson -year 2024
  gofhir-measures -measure cms165.json -patients cohort.ndjson -start 2024-01-01 -end 2024-12-31
  gofhir-measures -measure cms165.json -patients bundles.ndjson -fhir -output json
  gofhir-measures -measure cms165.json -patients cohort.ndjson -year 2024 -trends trends.json -last 12

Options:
`
)

// OutputFormat specifies the output format.
type OutputFormat string

// Output format constants.
const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

// Config holds CLI configuration
type Config struct {
	MeasureFile  string
	PatientsFile string
	FHIRBundles  bool
	Year         int
	Start        string
	End          string
	TrendsFile   string
	LastN        int
	Output       OutputFormat
	Workers      int
	Sequential   bool
	Quiet        bool
	Verbose      bool
	ShowVersion  bool
}

func main() {
	config := parseFlags()

	if config.ShowVersion {
		fmt.Printf("gofhir-measures %s\n", version)
		return
	}

	if config.Quiet {
		logger.Disable()
	} else if config.Verbose {
		logger.SetLevel(logger.LevelDebug)
	}

	if err := run(config); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() *Config {
	config := &Config{}

	flag.StringVar(&config.MeasureFile, "measure", "", "measure definition JSON file (required)")
	flag.StringVar(&config.PatientsFile, "patients", "", "cohort NDJSON file (required)")
	flag.BoolVar(&config.FHIRBundles, "fhir", false, "treat cohort lines as FHIR Bundles")
	flag.IntVar(&config.Year, "year", 0, "measurement period calendar year")
	flag.StringVar(&config.Start, "start", "", "measurement period start (YYYY-MM-DD)")
	flag.StringVar(&config.End, "end", "", "measurement period end (YYYY-MM-DD)")
	flag.StringVar(&config.TrendsFile, "trends", "", "trend snapshot file to load and update")
	flag.IntVar(&config.LastN, "last", 12, "trend entries to report")
	output := flag.String("output", "text", "output format: text or json")
	flag.IntVar(&config.Workers, "workers", 0, "worker count (default: number of CPUs)")
	flag.BoolVar(&config.Sequential, "sequential", false, "evaluate the cohort sequentially")
	flag.BoolVar(&config.Quiet, "quiet", false, "suppress log output")
	flag.BoolVar(&config.Verbose, "verbose", false, "enable debug logging")
	flag.BoolVar(&config.ShowVersion, "version", false, "print version and exit")

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	config.Output = OutputFormat(*output)
	return config
}

func run(config *Config) error {
	if config.MeasureFile == "" || config.PatientsFile == "" {
		flag.Usage()
		return fmt.Errorf("-measure and -patients are required")
	}

	period, err := resolvePeriod(config)
	if err != nil {
		return err
	}

	measureData, err := os.ReadFile(config.MeasureFile)
	if err != nil {
		return fmt.Errorf("failed to read measure definition: %w", err)
	}
	measure, err := loader.ParseMeasure(measureData)
	if err != nil {
		return err
	}

	patients, err := readCohort(config.PatientsFile, config.FHIRBundles)
	if err != nil {
		return err
	}

	opts := []qm.Option{}
	if config.Workers > 0 {
		opts = append(opts, qm.WithWorkerCount(config.Workers))
	}
	if config.Sequential {
		opts = append(opts, qm.WithParallelCohort(false))
	}

	eng, err := engine.New(measure, valueset.NewRegistry(), opts...)
	if err != nil {
		return err
	}

	tracker := trend.NewTracker()
	if config.TrendsFile != "" {
		if _, statErr := os.Stat(config.TrendsFile); statErr == nil {
			if err := tracker.Load(config.TrendsFile); err != nil {
				return err
			}
		}
	}

	// Cancel the run on interrupt; a cancelled run writes no trend entry.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	analysis, err := aggregate.New(eng).RunCohort(ctx, patients, period)
	if err != nil {
		return err
	}
	duration := time.Since(start)

	tracker.RecordAnalysis(analysis)
	analysis.Trends = tracker.Trend(measure.ID, config.LastN)

	if config.TrendsFile != "" {
		if err := tracker.Save(config.TrendsFile); err != nil {
			return err
		}
	}

	return report(config.Output, measure, analysis, len(patients), duration)
}

func resolvePeriod(config *Config) (qm.MeasurementPeriod, error) {
	if config.Year != 0 {
		return qm.CalendarYear(config.Year), nil
	}
	if config.Start == "" || config.End == "" {
		return qm.MeasurementPeriod{}, fmt.Errorf("provide either -year or both -start and -end")
	}
	start, err := time.Parse("2006-01-02", config.Start)
	if err != nil {
		return qm.MeasurementPeriod{}, fmt.Errorf("invalid -start: %w", err)
	}
	end, err := time.Parse("2006-01-02", config.End)
	if err != nil {
		return qm.MeasurementPeriod{}, fmt.Errorf("invalid -end: %w", err)
	}
	return qm.NewPeriod(start, end)
}

// readCohort reads one snapshot per NDJSON line.
func readCohort(path string, fhirBundles bool) ([]*qm.PatientSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cohort file: %w", err)
	}
	defer f.Close()

	var patients []*qm.PatientSnapshot
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var snapshot *qm.PatientSnapshot
		if fhirBundles {
			snapshot, err = loader.ParseBundleSnapshot([]byte(text))
		} else {
			snapshot, err = loader.ParseSnapshot([]byte(text))
		}
		if err != nil {
			return nil, fmt.Errorf("cohort line %d: %w", line, err)
		}
		patients = append(patients, snapshot)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cohort file: %w", err)
	}

	return patients, nil
}

func report(format OutputFormat, measure qm.QualityMeasure, analysis *qm.MeasurePopulationAnalysis, cohortSize int, duration time.Duration) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(analysis)
	case OutputText:
		fmt.Printf("Measure:     %s (%s)\n", measure.Title, measure.ID)
		fmt.Printf("Period:      %s\n", analysis.Period)
		fmt.Printf("Cohort:      %d patients evaluated in %s\n", cohortSize, duration.Round(time.Millisecond))
		fmt.Printf("Eligible:    %d\n", analysis.Eligible)
		fmt.Printf("Excluded:    %d\n", analysis.Excluded)
		fmt.Printf("Compliant:   %d\n", analysis.Compliant)
		fmt.Printf("Performance: %.1f%%", analysis.Performance)
		if measure.Performance != nil && measure.Performance.Target != nil {
			fmt.Printf(" (target %.1f%%)", *measure.Performance.Target)
		}
		fmt.Println()

		if len(analysis.Failures) > 0 {
			fmt.Printf("\nEvaluation failed for %d patient(s):\n", len(analysis.Failures))
			for _, failure := range analysis.Failures {
				fmt.Printf("  %s: %s\n", failure.Patient, failure.Reason)
			}
		}

		if len(analysis.Gaps) > 0 {
			fmt.Printf("\nCare gaps (%d):\n", len(analysis.Gaps))
			for _, gap := range analysis.Gaps {
				fmt.Printf("  %s: %s\n", gap.Patient, strings.Join(gap.Requirements, "; "))
			}
		}

		if len(analysis.Trends) > 0 {
			fmt.Println("\nTrend:")
			for _, point := range analysis.Trends {
				fmt.Printf("  %s  %s%%\n", point.Period, strconv.FormatFloat(point.Performance, 'f', 1, 64))
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
