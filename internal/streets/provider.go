package streets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/agnivade/levenshtein"
	"github.com/sirupsen/logrus"

	"github.com/Jntvanlanschot/Vastgoedanalyse/config"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
)

type ProviderOptions struct {
	// BatchSize is the number of names per query, the reference included.
	BatchSize     int
	Query         QueryOptions
	CanalDistance float64
}

func DefaultProviderOptions() ProviderOptions {
	return ProviderOptions{
		BatchSize:     25,
		Query:         DefaultQueryOptions(),
		CanalDistance: 20,
	}
}

func ProviderOptionsFromConfig(cfg *config.Config) ProviderOptions {
	return ProviderOptions{
		BatchSize:     cfg.Overpass.BatchSize,
		Query:         QueryOptionsFromConfig(cfg),
		CanalDistance: cfg.Overpass.CanalDistance,
	}
}

// Provider finds the streets most alike a reference street.
type Provider struct {
	client Querier
	cache  Cache
	opts   ProviderOptions
	logger *logrus.Logger
}

// NewProvider creates a provider. cache may be nil.
func NewProvider(client Querier, cache Cache, opts ProviderOptions, logger *logrus.Logger) *Provider {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if opts.BatchSize < 2 {
		opts.BatchSize = 2
	}
	return &Provider{
		client: client,
		cache:  cache,
		opts:   opts,
		logger: logger,
	}
}

// Result holds the scored candidates and the profiles they were built from.
type Result struct {
	Matches  []models.StreetMatch
	Profiles ProfileSet
}

// FindSimilar scores every candidate street against the reference, best
// first. When the reference street is unknown to OpenStreetMap, or the
// service fails in any way, the result is empty and no error is returned.
// Only a cancelled context is reported.
func (p *Provider) FindSimilar(ctx context.Context, reference string, candidates []string) (*Result, error) {
	refKey := NormalizeName(reference)
	empty := &Result{Matches: []models.StreetMatch{}, Profiles: ProfileSet{}}
	if refKey == "" {
		return empty, nil
	}

	names := uniqueNames(candidates, refKey)
	if len(names) == 0 {
		return empty, nil
	}

	var elements []Element
	seen := make(map[string]struct{})
	for _, batch := range batches(names, p.opts.BatchSize-1) {
		resp, err := p.fetch(ctx, append([]string{reference}, batch...))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			p.logger.WithError(err).Warn("Street geometry unavailable, continuing without it")
			return empty, nil
		}
		for _, e := range resp.Elements {
			id := fmt.Sprintf("%s/%d", e.Type, e.ID)
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			elements = append(elements, e)
		}
	}

	profiles := BuildProfiles(elements, p.opts.CanalDistance)
	refProfile, ok := profiles.Get(reference)
	if !ok {
		p.logger.WithField("reference", reference).Warn("Reference street not found in OpenStreetMap data")
		return &Result{Matches: []models.StreetMatch{}, Profiles: profiles}, nil
	}

	matches := make([]models.StreetMatch, 0, len(names))
	for _, name := range names {
		profile, ok := profiles.Get(name)
		if !ok {
			continue
		}
		score, components := Compare(refProfile, profile)
		matches = append(matches, models.StreetMatch{
			StreetName: name,
			Score:      score,
			Components: components,
			Profile:    profile,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	p.logger.WithFields(logrus.Fields{
		"reference":  reference,
		"candidates": len(names),
		"profiled":   len(matches),
	}).Info("Compared street geometry")

	return &Result{Matches: matches, Profiles: profiles}, nil
}

// fetch returns the Overpass answer for one batch, from the cache when possible.
func (p *Provider) fetch(ctx context.Context, names []string) (*Response, error) {
	key := CacheKey(names)
	if p.cache != nil {
		resp, ok, err := p.cache.Get(ctx, key)
		if err != nil {
			p.logger.WithError(err).Warn("Failed to read street cache")
		}
		if ok {
			return resp, nil
		}
	}

	opts := p.opts.Query
	opts.Anchored = true
	resp, err := p.client.Query(ctx, BuildQuery(names, opts))
	if errors.Is(err, ErrBadQuery) && opts.Waterways {
		p.logger.WithError(err).Warn("Overpass rejected query, retrying without waterways")
		opts.Waterways = false
		resp, err = p.client.Query(ctx, BuildQuery(names, opts))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query street data: %w", err)
	}

	complete := true
	if missing := missingNames(resp, names); len(missing) > 0 {
		complete = p.addUnanchored(ctx, resp, missing)
	}

	// A partial answer is used for this run but not cached.
	if p.cache != nil && complete {
		if err := p.cache.Set(ctx, key, resp); err != nil {
			p.logger.WithError(err).Warn("Failed to write street cache")
		}
	}
	return resp, nil
}

// addUnanchored looks up names that had no exact way by substring and
// renames each way found to the closest requested name. It reports false
// when the lookup itself failed.
func (p *Provider) addUnanchored(ctx context.Context, resp *Response, missing []string) bool {
	opts := p.opts.Query
	opts.Anchored = false
	opts.Waterways = false

	extra, err := p.client.Query(ctx, BuildQuery(missing, opts))
	if err != nil {
		p.logger.WithError(err).WithField("streets", missing).Warn("Unanchored street lookup failed")
		return false
	}

	for _, e := range extra.Elements {
		if e.Type != "way" || e.IsWaterway() {
			continue
		}
		found := NormalizeName(e.Tags["name"])
		if found == "" {
			continue
		}

		best, bestDist := "", -1
		for _, name := range missing {
			d := levenshtein.ComputeDistance(found, NormalizeName(name))
			if bestDist < 0 || d < bestDist {
				best, bestDist = name, d
			}
		}

		tags := make(map[string]string, len(e.Tags))
		for k, v := range e.Tags {
			tags[k] = v
		}
		tags["name"] = best
		e.Tags = tags
		resp.Elements = append(resp.Elements, e)
	}

	p.logger.WithFields(logrus.Fields{
		"streets": len(missing),
		"ways":    len(extra.Elements),
	}).Debug("Resolved streets with unanchored lookup")
	return true
}

func missingNames(resp *Response, names []string) []string {
	found := make(map[string]struct{})
	for _, e := range resp.Elements {
		if e.Type == "way" && !e.IsWaterway() {
			found[NormalizeName(e.Tags["name"])] = struct{}{}
		}
	}

	var missing []string
	for _, n := range names {
		if _, ok := found[NormalizeName(n)]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

func uniqueNames(candidates []string, refKey string) []string {
	seen := map[string]struct{}{refKey: {}}
	var out []string
	for _, c := range candidates {
		k := NormalizeName(c)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

func batches(names []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(names); start += size {
		end := start + size
		if end > len(names) {
			end = len(names)
		}
		out = append(out, names[start:end])
	}
	return out
}
