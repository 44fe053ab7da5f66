package linkage

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/incident.report/internal/geo"
)

type strategy struct {
	linkType LinkageType
	run      func(ctx context.Context, seed Incident) []LinkageEdge
}

func (l *Linker) strategies() []strategy {
	return []strategy{
		{TypeBallisticMatch, l.ballisticMatch},
		{TypeEntityOverlap, l.sharedCount(TypeEntityOverlap, QuerySharedEntities, "entities", 0.2, "entities")},
		{TypeVehicleRecurrence, l.sharedCount(TypeVehicleRecurrence, QuerySharedVehicles, "plates", 0.5, "vehicles")},
		{TypeMOSimilarity, l.moSimilarity},
		{TypeSuspectDescription, l.textSimilarity(TypeSuspectDescription, "suspect_description", func(inc Incident) string { return inc.SuspectDescription })},
		{TypeWeaponType, l.sharedCount(TypeWeaponType, QuerySharedWeaponTypes, "weapon_types", 0.5, "weapon types")},
		{TypeGeographic, l.geographic},
		{TypeNarrativeSimilarity, l.textSimilarity(TypeNarrativeSimilarity, "narrative", func(inc Incident) string { return inc.Narrative })},
		{TypeTemporal, l.temporal},
		{TypeRepeatCaller, l.sharedCount(TypeRepeatCaller, QuerySharedCallers, "callers", 1.0/3.0, "callers")},
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func (l *Linker) edge(t LinkageType, seed Incident, target string, strength float64, explanation string, meta map[string]any) LinkageEdge {
	strength = clamp01(strength)
	meta["strength"] = strength
	return LinkageEdge{
		SourceID:    seed.ID,
		TargetID:    target,
		Type:        t,
		Confidence:  l.cfg.GetLinkageWeight(string(t)) * strength,
		Explanation: explanation,
		Metadata:    meta,
	}
}

// temporal links incidents that occurred within the temporal window of the
// seed; strength falls linearly to zero at the window edge.
func (l *Linker) temporal(ctx context.Context, seed Incident) []LinkageEdge {
	if l.graph == nil || seed.OccurredAt.IsZero() {
		return nil
	}
	window := l.cfg.GetTemporalWindow()
	records, err := l.queryGraph(ctx, QueryIncidentsInWindow, map[string]any{
		"id":    seed.ID,
		"start": seed.OccurredAt.Add(-window),
		"end":   seed.OccurredAt.Add(window),
	})
	if err != nil {
		return nil
	}

	var out []LinkageEdge
	for _, r := range records {
		target := recordString(r, "id")
		at, ok := recordTime(r, "occurred_at")
		if !ok {
			continue
		}
		delta := at.Sub(seed.OccurredAt)
		if delta < 0 {
			delta = -delta
		}
		if delta > window {
			continue
		}
		hours := delta.Hours()
		out = append(out, l.edge(TypeTemporal, seed, target, 1-float64(delta)/float64(window),
			fmt.Sprintf("%s and %s occurred %.1f h apart", seed.ID, target, hours),
			map[string]any{"hours_apart": hours, "window_hours": window.Hours()}))
	}
	return out
}

// geographic links incidents within the geographic radius of the seed;
// strength falls linearly to zero at the radius.
func (l *Linker) geographic(ctx context.Context, seed Incident) []LinkageEdge {
	if l.graph == nil || seed.Location == nil {
		return nil
	}
	radius := l.cfg.GetGeographicRadiusKm()
	records, err := l.queryGraph(ctx, QueryIncidentsNear, map[string]any{
		"id":        seed.ID,
		"latitude":  seed.Location.Lat,
		"longitude": seed.Location.Lon,
		"radius_km": radius,
	})
	if err != nil {
		return nil
	}

	var out []LinkageEdge
	for _, r := range records {
		target := recordString(r, "id")
		lat, latOK := recordFloat(r, "latitude")
		lon, lonOK := recordFloat(r, "longitude")
		if !latOK || !lonOK || !geo.ValidCoordinate(lat, lon) {
			continue
		}
		km := geo.HaversineKm(seed.Location.Lat, seed.Location.Lon, lat, lon)
		if km > radius {
			continue
		}
		out = append(out, l.edge(TypeGeographic, seed, target, 1-km/radius,
			fmt.Sprintf("%s and %s are %.2f km apart", seed.ID, target, km),
			map[string]any{
				"distance_km": km,
				"bearing_deg": geo.BearingDeg(seed.Location.Lat, seed.Location.Lon, lat, lon),
				"radius_km":   radius,
			}))
	}
	return out
}

// ballisticMatch links incidents sharing ballistic evidence at full strength.
func (l *Linker) ballisticMatch(ctx context.Context, seed Incident) []LinkageEdge {
	if l.graph == nil {
		return nil
	}
	records, err := l.queryGraph(ctx, QuerySharedBallistics, map[string]any{"id": seed.ID})
	if err != nil {
		return nil
	}
	var out []LinkageEdge
	for _, r := range records {
		target := recordString(r, "id")
		caliber := recordString(r, "caliber")
		explanation := fmt.Sprintf("%s and %s share ballistic evidence", seed.ID, target)
		if caliber != "" {
			explanation = fmt.Sprintf("%s and %s share %s ballistic evidence", seed.ID, target, caliber)
		}
		out = append(out, l.edge(TypeBallisticMatch, seed, target, 1, explanation,
			map[string]any{"caliber": caliber, "evidence_id": recordString(r, "evidence_id")}))
	}
	return out
}

// sharedCount builds a strategy over one of the shared_* graph queries with
// strength min(1, perItem * shared).
func (l *Linker) sharedCount(t LinkageType, spec QuerySpec, listKey string, perItem float64, noun string) func(context.Context, Incident) []LinkageEdge {
	return func(ctx context.Context, seed Incident) []LinkageEdge {
		if l.graph == nil {
			return nil
		}
		records, err := l.queryGraph(ctx, spec, map[string]any{"id": seed.ID})
		if err != nil {
			return nil
		}
		var out []LinkageEdge
		for _, r := range records {
			target := recordString(r, "id")
			n := recordCount(r, listKey)
			if n <= 0 {
				continue
			}
			meta := map[string]any{
				"shared_count": n,
				listKey:        recordStrings(r, listKey),
			}
			if t == TypeEntityOverlap {
				meta["shared_entity_count"] = n
			}
			out = append(out, l.edge(t, seed, target, perItem*float64(n),
				fmt.Sprintf("%s and %s share %d %s", seed.ID, target, n, noun), meta))
		}
		return out
	}
}

// moSimilarity searches for incidents sharing modus-operandi attributes with
// the seed; strength is the fraction of the seed's attributes matched.
func (l *Linker) moSimilarity(ctx context.Context, seed Incident) []LinkageEdge {
	if l.search == nil || len(seed.MOAttributes) == 0 {
		return nil
	}
	should := make([]any, 0, len(seed.MOAttributes))
	for _, a := range seed.MOAttributes {
		should = append(should, map[string]any{"term": map[string]any{"mo_attributes": a}})
	}
	query := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"should":               should,
				"minimum_should_match": 1,
				"must_not":             []any{map[string]any{"ids": map[string]any{"values": []string{seed.ID}}}},
			},
		},
	}
	hits, err := l.searchIndex(ctx, query, l.cfg.GetSearchResultSize())
	if err != nil {
		return nil
	}

	want := make(map[string]bool, len(seed.MOAttributes))
	for _, a := range seed.MOAttributes {
		want[strings.ToLower(a)] = true
	}
	var out []LinkageEdge
	for _, h := range hits {
		var shared []string
		for _, a := range recordStrings(h.Source, "mo_attributes") {
			if want[strings.ToLower(a)] {
				shared = append(shared, a)
			}
		}
		if len(shared) == 0 {
			continue
		}
		out = append(out, l.edge(TypeMOSimilarity, seed, h.ID, float64(len(shared))/float64(len(want)),
			fmt.Sprintf("%s and %s share M.O. attributes: %s", seed.ID, h.ID, strings.Join(shared, ", ")),
			map[string]any{"shared_attributes": shared, "search_score": h.Score}))
	}
	return out
}

// textSimilarity builds a search strategy over one free-text field. Strength
// is the relevance score over the configured normaliser, capped at 1.
func (l *Linker) textSimilarity(t LinkageType, field string, text func(Incident) string) func(context.Context, Incident) []LinkageEdge {
	return func(ctx context.Context, seed Incident) []LinkageEdge {
		body := strings.TrimSpace(text(seed))
		if l.search == nil || body == "" {
			return nil
		}
		var clause map[string]any
		if t == TypeNarrativeSimilarity {
			clause = map[string]any{"more_like_this": map[string]any{
				"fields":        []string{field},
				"like":          body,
				"min_term_freq": 1,
				"min_doc_freq":  1,
			}}
		} else {
			clause = map[string]any{"match": map[string]any{field: body}}
		}
		query := map[string]any{
			"query": map[string]any{
				"bool": map[string]any{
					"must":     []any{clause},
					"must_not": []any{map[string]any{"ids": map[string]any{"values": []string{seed.ID}}}},
				},
			},
		}
		hits, err := l.searchIndex(ctx, query, l.cfg.GetSearchResultSize())
		if err != nil {
			return nil
		}
		normalizer := l.cfg.GetSearchScoreNormalizer()
		label := strings.ReplaceAll(field, "_", " ")
		var out []LinkageEdge
		for _, h := range hits {
			if h.Score <= 0 {
				continue
			}
			out = append(out, l.edge(t, seed, h.ID, h.Score/normalizer,
				fmt.Sprintf("%s and %s have similar %s (score %.2f)", seed.ID, h.ID, label, h.Score),
				map[string]any{"search_score": h.Score, "field": field}))
		}
		return out
	}
}

