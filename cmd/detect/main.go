// Command incident-detect runs anomaly detection over a batch of events.
//
// Events are read as JSON lines (or a JSON array with -array). An optional
// history file is fed to the baseline tracker first. With -results-db the
// learned baselines are restored before and saved after the run, together
// with the detected anomalies.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/incident.report/internal/anomaly"
	"github.com/banshee-data/incident.report/internal/baseline"
	"github.com/banshee-data/incident.report/internal/config"
	"github.com/banshee-data/incident.report/internal/event"
	"github.com/banshee-data/incident.report/internal/metrics"
	"github.com/banshee-data/incident.report/internal/security"
	"github.com/banshee-data/incident.report/internal/store"
	"github.com/banshee-data/incident.report/internal/version"
)

var (
	eventsPath    = flag.String("events", "-", "Events file (JSON lines), - for stdin")
	historyPath   = flag.String("history", "", "Optional history file (JSON lines) used to learn baselines before detection")
	arrayInput    = flag.Bool("array", false, "Read input files as a JSON array instead of JSON lines")
	configPath    = flag.String("config", "", "Tuning config (.json, .yaml or .yml)")
	resultsDB     = flag.String("results-db", "", "SQLite results database; baselines are restored from and saved to it")
	outPath       = flag.String("out", "-", "Output file for the anomaly records, - for stdout")
	metricsListen = flag.String("metrics-listen", "", "Serve Prometheus metrics on this address until interrupted")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

type options struct {
	EventsPath  string
	HistoryPath string
	Array       bool
	ConfigPath  string
	ResultsDB   string
	Metrics     *metrics.Metrics
}

type output struct {
	RunID      string                  `json:"run_id,omitempty"`
	EventCount int                     `json:"event_count"`
	Learned    int                     `json:"learned_events"`
	Anomalies  []anomaly.AnomalyRecord `json:"anomalies"`
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("incident-detect"))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}

	out, err := run(ctx, options{
		EventsPath:  *eventsPath,
		HistoryPath: *historyPath,
		Array:       *arrayInput,
		ConfigPath:  *configPath,
		ResultsDB:   *resultsDB,
		Metrics:     m,
	})
	if err != nil {
		log.Fatalf("detection failed: %v", err)
	}
	if err := writeJSON(*outPath, out); err != nil {
		log.Fatalf("failed to write output: %v", err)
	}
	log.Printf("detected %d anomalies in %d events", len(out.Anomalies), out.EventCount)

	if *metricsListen != "" {
		serveMetrics(ctx, *metricsListen, reg)
	}
}

func run(ctx context.Context, opts options) (*output, error) {
	cfg := config.EmptyTuningConfig()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.LoadTuningConfig(opts.ConfigPath); err != nil {
			return nil, err
		}
	}

	var results *store.Store
	bs := baseline.NewStore()
	if opts.ResultsDB != "" {
		var err error
		if results, err = store.Open(opts.ResultsDB); err != nil {
			return nil, err
		}
		defer results.Close()
		saved, err := results.LoadBaselines(ctx)
		if err != nil {
			return nil, err
		}
		bs.Restore(saved)
		log.Printf("restored %d baselines from %s", len(saved), opts.ResultsDB)
	}

	detector := anomaly.NewDetector(bs, anomaly.WithConfig(cfg), anomaly.WithMetrics(opts.Metrics))

	out := &output{}
	if opts.HistoryPath != "" {
		history, err := readEvents(opts.HistoryPath, opts.Array)
		if err != nil {
			return nil, err
		}
		out.Learned = detector.UpdateBaseline(history)
	}

	events, err := readEvents(opts.EventsPath, opts.Array)
	if err != nil {
		return nil, err
	}
	out.EventCount = len(events)
	out.Anomalies = detector.Detect(ctx, events)

	if results != nil {
		detection, err := results.SaveDetection(ctx, len(events), out.Anomalies)
		if err != nil {
			return nil, err
		}
		out.RunID = detection.ID
		if err := results.SaveBaselines(ctx, bs.Snapshot()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readEvents(path string, array bool) ([]event.Event, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open events file: %w", err)
		}
		defer f.Close()
		r = f
	}
	if array {
		return event.ReadJSONArray(r)
	}
	events, skipped, err := event.ReadJSONLines(r)
	if skipped > 0 {
		log.Printf("skipped %d malformed lines in %s", skipped, path)
	}
	return events, err
}

func writeJSON(path string, v any) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		if err := security.ValidateOutputPath(path); err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start metrics server: %v", err)
		}
	}()
	log.Printf("serving metrics on %s", addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}
}
