// Package linkage scores evidence that incidents are related and returns the
// deduplicated linkage closure around a set of seed incidents.
//
// Evidence comes from two optional collaborators, a graph store and a search
// index. A missing, slow or failing collaborator only removes the edges its
// strategies would have produced; Link itself never fails.
package linkage

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/incident.report/internal/config"
	"github.com/banshee-data/incident.report/internal/errors"
	"github.com/banshee-data/incident.report/internal/metrics"
	"github.com/banshee-data/incident.report/internal/monitoring"
)

// MinConfidenceThreshold is the default floor below which edges are dropped.
const MinConfidenceThreshold = 0.3

// NoIncidentsNote is the explanation returned for an empty id list.
const NoIncidentsNote = "no incidents found: the incident id list was empty"

const (
	collaboratorGraph  = "graph"
	collaboratorSearch = "search"
)

var logf = monitoring.Prefixed("linkage")

// Linker runs the evidence strategies. It holds no per-request state and is
// safe for concurrent use.
type Linker struct {
	graph   GraphClient
	search  SearchClient
	cfg     *config.TuningConfig
	metrics *metrics.Metrics
}

// Option configures a Linker.
type Option func(*Linker)

// WithGraph sets the graph collaborator.
func WithGraph(g GraphClient) Option {
	return func(l *Linker) { l.graph = g }
}

// WithSearch sets the search collaborator.
func WithSearch(s SearchClient) Option {
	return func(l *Linker) { l.search = s }
}

// WithConfig sets the tuning config. A nil config uses the defaults.
func WithConfig(cfg *config.TuningConfig) Option {
	return func(l *Linker) {
		if cfg != nil {
			l.cfg = cfg
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Linker) { l.metrics = m }
}

// NewLinker creates a Linker. Without collaborators every seed resolves to a
// placeholder and no edges are produced.
func NewLinker(opts ...Option) *Linker {
	l := &Linker{cfg: config.EmptyTuningConfig()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Link resolves each seed id, runs every strategy for every seed, drops edges
// below the confidence threshold and self links, deduplicates by (source,
// target, type) keeping the highest confidence, and expands the incident set
// with every edge endpoint.
//
// Collaborator calls stop once ctx is done; edges gathered before that point
// are still returned.
func (l *Linker) Link(ctx context.Context, ids []string) LinkageResult {
	start := time.Now()
	defer l.metrics.ObserveLink(start)

	seedIDs := uniqueIDs(ids)
	if len(seedIDs) == 0 {
		return LinkageResult{
			LinkedIncidents: []Incident{},
			Linkages:        []LinkageEdge{},
			Confidence:      map[string]float64{},
			Explanations:    []string{NoIncidentsNote},
		}
	}

	seeds := l.resolveAll(ctx, seedIDs)

	strategies := l.strategies()
	slots := make([][]LinkageEdge, len(seeds)*len(strategies))
	g := l.group()
	for i, seed := range seeds {
		for j, s := range strategies {
			slot := i*len(strategies) + j
			g.Go(func() error {
				defer func() {
					if r := recover(); r != nil {
						logf("strategy %s for %s panicked: %v", s.linkType, seed.ID, r)
						slots[slot] = nil
					}
				}()
				began := time.Now()
				slots[slot] = s.run(ctx, seed)
				l.metrics.ObserveStrategy(string(s.linkType), began)
				return nil
			})
		}
	}
	_ = g.Wait()

	var candidates []LinkageEdge
	for _, edges := range slots {
		candidates = append(candidates, edges...)
	}
	edges := l.filterAndDedup(candidates)

	incidents := l.expand(ctx, seeds, edges)
	confidence := make(map[string]float64, len(incidents))
	for _, inc := range incidents {
		confidence[inc.ID] = 0
	}
	explanations := make([]string, 0, len(edges))
	for _, e := range edges {
		if e.Confidence > confidence[e.SourceID] {
			confidence[e.SourceID] = e.Confidence
		}
		if e.Confidence > confidence[e.TargetID] {
			confidence[e.TargetID] = e.Confidence
		}
		explanations = append(explanations, e.Explanation)
		l.metrics.LinkageEmitted(string(e.Type))
	}
	if len(edges) == 0 {
		explanations = append(explanations, fmt.Sprintf(
			"no linkages at or above confidence %.2f for %d incident(s)", l.cfg.GetMinLinkConfidence(), len(seeds)))
	}

	return LinkageResult{
		LinkedIncidents: incidents,
		Linkages:        edges,
		Confidence:      confidence,
		Explanations:    explanations,
	}
}

func (l *Linker) group() *errgroup.Group {
	g := new(errgroup.Group)
	g.SetLimit(l.cfg.GetLinkMaxConcurrency())
	return g
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// filterAndDedup drops weak edges and self links, then keeps the strongest
// edge per (source, target, type). Surviving edges keep first-seen order.
func (l *Linker) filterAndDedup(candidates []LinkageEdge) []LinkageEdge {
	threshold := l.cfg.GetMinLinkConfidence()
	index := make(map[edgeKey]int)
	out := make([]LinkageEdge, 0, len(candidates))
	for _, e := range candidates {
		if e.SourceID == e.TargetID || e.TargetID == "" || e.Confidence < threshold {
			continue
		}
		k := e.key()
		if i, ok := index[k]; ok {
			if e.Confidence > out[i].Confidence {
				out[i] = e
			}
			continue
		}
		index[k] = len(out)
		out = append(out, e)
	}
	return out
}

// expand returns the seeds followed by every other edge endpoint, in edge
// order, resolving the new ones.
func (l *Linker) expand(ctx context.Context, seeds []Incident, edges []LinkageEdge) []Incident {
	known := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		known[s.ID] = true
	}
	var extra []string
	for _, e := range edges {
		for _, id := range []string{e.SourceID, e.TargetID} {
			if !known[id] {
				known[id] = true
				extra = append(extra, id)
			}
		}
	}
	out := make([]Incident, 0, len(seeds)+len(extra))
	out = append(out, seeds...)
	return append(out, l.resolveAll(ctx, extra)...)
}

// resolveAll resolves ids in parallel, preserving order.
func (l *Linker) resolveAll(ctx context.Context, ids []string) []Incident {
	out := make([]Incident, len(ids))
	g := l.group()
	for i, id := range ids {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					logf("resolving %s panicked: %v", id, r)
					out[i] = Incident{ID: id, Placeholder: true, ResolvedBy: "placeholder"}
				}
			}()
			out[i] = l.resolve(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// resolve tries the graph, then the search index, then falls back to a
// placeholder.
func (l *Linker) resolve(ctx context.Context, id string) Incident {
	if l.graph != nil {
		records, err := l.queryGraph(ctx, QueryIncident, map[string]any{"id": id})
		if err == nil {
			for _, r := range records {
				if inc := incidentFromRecord(r, collaboratorGraph); inc.ID == id {
					return inc
				}
			}
		}
	}
	if l.search != nil {
		query := map[string]any{"query": map[string]any{"ids": map[string]any{"values": []string{id}}}}
		hits, err := l.searchIndex(ctx, query, 1)
		if err == nil {
			for _, h := range hits {
				if h.ID == id {
					src := make(map[string]any, len(h.Source)+1)
					for k, v := range h.Source {
						src[k] = v
					}
					src["id"] = id
					return incidentFromRecord(src, collaboratorSearch)
				}
			}
		}
	}
	l.metrics.PlaceholderSeed()
	return Incident{ID: id, Placeholder: true, ResolvedBy: "placeholder"}
}

// queryGraph issues one graph call with the per-call timeout. No call is made
// once ctx is done.
func (l *Linker) queryGraph(ctx context.Context, spec QuerySpec, params map[string]any) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Collaborator(err, collaboratorGraph)
	}
	callCtx, cancel := context.WithTimeout(ctx, l.cfg.GetCollaboratorTimeout())
	defer cancel()
	records, err := l.callGraph(callCtx, spec, params)
	if err != nil {
		err = errors.Collaborator(err, collaboratorGraph)
		logf("%s query for %v failed: %v", spec, params["id"], err)
		l.metrics.CollaboratorError(collaboratorGraph)
		return nil, err
	}
	return records, nil
}

// searchIndex issues one search call with the per-call timeout. No call is
// made once ctx is done.
func (l *Linker) searchIndex(ctx context.Context, query map[string]any, size int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Collaborator(err, collaboratorSearch)
	}
	callCtx, cancel := context.WithTimeout(ctx, l.cfg.GetCollaboratorTimeout())
	defer cancel()
	hits, err := l.callSearch(callCtx, query, size)
	if err != nil {
		err = errors.Collaborator(err, collaboratorSearch)
		logf("search on %s failed: %v", IncidentIndex, err)
		l.metrics.CollaboratorError(collaboratorSearch)
		return nil, err
	}
	return hits, nil
}

// callGraph turns a panic inside the graph client into an error.
func (l *Linker) callGraph(ctx context.Context, spec QuerySpec, params map[string]any) (records []Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			records, err = nil, errors.Errorf(errors.KindInternal, "graph client panicked on %s: %v", spec, r)
		}
	}()
	return l.graph.ExecuteQuery(ctx, spec, params)
}

// callSearch turns a panic inside the search client into an error.
func (l *Linker) callSearch(ctx context.Context, query map[string]any, size int) (hits []Hit, err error) {
	defer func() {
		if r := recover(); r != nil {
			hits, err = nil, errors.Errorf(errors.KindInternal, "search client panicked: %v", r)
		}
	}()
	return l.search.Search(ctx, IncidentIndex, query, size)
}
