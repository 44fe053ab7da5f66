// Command incident-link links incidents to related incidents using the
// evidence strategies of the linkage package.
//
// Relationship queries go to a SQLite graph database (-graph-db), optionally
// seeded from a fixture with -import. Text similarity queries go to an
// Elasticsearch-compatible endpoint (-search-url). Either collaborator may be
// omitted; seeds that cannot be resolved are returned as placeholders.
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
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/incident.report/internal/config"
	"github.com/banshee-data/incident.report/internal/graphstore"
	"github.com/banshee-data/incident.report/internal/linkage"
	"github.com/banshee-data/incident.report/internal/metrics"
	"github.com/banshee-data/incident.report/internal/search"
	"github.com/banshee-data/incident.report/internal/security"
	"github.com/banshee-data/incident.report/internal/store"
	"github.com/banshee-data/incident.report/internal/version"
)

var (
	graphDB       = flag.String("graph-db", "", "SQLite graph database holding incidents and their relationships")
	importPath    = flag.String("import", "", "Fixture (.json, .yaml or .yml) to load into the graph database before linking")
	searchURL     = flag.String("search-url", "", "Base URL of an Elasticsearch-compatible search endpoint")
	idList        = flag.String("ids", "", "Comma-separated seed incident ids (positional arguments are also accepted)")
	configPath    = flag.String("config", "", "Tuning config (.json, .yaml or .yml)")
	timeout       = flag.Duration("timeout", 30*time.Second, "Overall deadline for one link request")
	resultsDB     = flag.String("results-db", "", "SQLite results database to record the linkage result in")
	outPath       = flag.String("out", "-", "Output file for the linkage result, - for stdout")
	metricsListen = flag.String("metrics-listen", "", "Serve Prometheus metrics on this address until interrupted")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

type options struct {
	GraphDB    string
	ImportPath string
	SearchURL  string
	IDs        []string
	ConfigPath string
	Timeout    time.Duration
	ResultsDB  string
	Metrics    *metrics.Metrics
}

type output struct {
	RunID    string `json:"run_id,omitempty"`
	Imported int    `json:"imported_incidents,omitempty"`
	linkage.LinkageResult
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("incident-link"))
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
		GraphDB:    *graphDB,
		ImportPath: *importPath,
		SearchURL:  *searchURL,
		IDs:        seedIDs(*idList, flag.Args()),
		ConfigPath: *configPath,
		Timeout:    *timeout,
		ResultsDB:  *resultsDB,
		Metrics:    m,
	})
	if err != nil {
		log.Fatalf("linking failed: %v", err)
	}
	if err := writeJSON(*outPath, out); err != nil {
		log.Fatalf("failed to write output: %v", err)
	}
	log.Printf("linked %d incidents with %d edges", len(out.LinkedIncidents), len(out.Linkages))

	if *metricsListen != "" {
		serveMetrics(ctx, *metricsListen, reg)
	}
}

// seedIDs merges the -ids list with positional arguments.
func seedIDs(list string, args []string) []string {
	var ids []string
	for _, id := range strings.Split(list, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return append(ids, args...)
}

func run(ctx context.Context, opts options) (*output, error) {
	cfg := config.EmptyTuningConfig()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.LoadTuningConfig(opts.ConfigPath); err != nil {
			return nil, err
		}
	}

	linkerOpts := []linkage.Option{linkage.WithConfig(cfg), linkage.WithMetrics(opts.Metrics)}
	out := &output{}

	if opts.GraphDB != "" {
		graph, err := graphstore.Open(opts.GraphDB)
		if err != nil {
			return nil, err
		}
		defer graph.Close()
		if opts.ImportPath != "" {
			fixture, err := graphstore.LoadFixture(opts.ImportPath)
			if err != nil {
				return nil, err
			}
			if out.Imported, err = graph.Import(ctx, fixture); err != nil {
				return nil, err
			}
			log.Printf("imported %d incidents from %s", out.Imported, opts.ImportPath)
		}
		linkerOpts = append(linkerOpts, linkage.WithGraph(graph))
	} else if opts.ImportPath != "" {
		return nil, fmt.Errorf("-import requires -graph-db")
	}

	if opts.SearchURL != "" {
		client, err := search.NewClient(opts.SearchURL)
		if err != nil {
			return nil, err
		}
		linkerOpts = append(linkerOpts, linkage.WithSearch(client))
	}

	linkCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		linkCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	out.LinkageResult = linkage.NewLinker(linkerOpts...).Link(linkCtx, opts.IDs)

	if opts.ResultsDB != "" {
		results, err := store.Open(opts.ResultsDB)
		if err != nil {
			return nil, err
		}
		defer results.Close()
		if out.RunID, err = results.SaveLinkage(ctx, opts.IDs, out.LinkageResult); err != nil {
			return nil, err
		}
	}
	return out, nil
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
