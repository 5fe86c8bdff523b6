package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/geometry"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/linker"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/realworks"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/report"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/scoring"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/streets"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/tables"
)

type StreetsResult struct {
	models.Result
	TopStreets           []string             `json:"top_5_streets"`
	StreetStatistics     []models.StreetStats `json:"street_statistics"`
	TotalFundaRecords    int                  `json:"total_funda_records"`
	RankingRecords       int                  `json:"ranking_records"`
	BestStreetsFile      string               `json:"best_streets_file,omitempty"`
	StreetSimilarityFile string               `json:"street_similarity_file,omitempty"`
}

type ParseResult struct {
	models.Result
	ProcessedRecords int      `json:"processed_records"`
	FilteredRecords  int      `json:"filtered_records"`
	FailedSegments   int      `json:"failed_segments"`
	StreetsFound     []string `json:"streets_found"`
	StreetsMissing   []string `json:"streets_missing"`
	RealworksFile    string   `json:"realworks_file,omitempty"`
	FilteredFile     string   `json:"filtered_file,omitempty"`
}

type MergeResult struct {
	models.Result
	TotalRecords   int                       `json:"total_records"`
	MatchedRecords int                       `json:"matched_records"`
	MatchSummary   map[models.MatchType]int  `json:"match_summary"`
	Top15Count     int                       `json:"top_15_count"`
	Summary        scoring.ShortlistSummary  `json:"summary"`
	MergedFile     string                    `json:"merged_file,omitempty"`
	Top15File      string                    `json:"top15_file,omitempty"`
	RunID          string                    `json:"run_id,omitempty"`
	Top15Matches   []models.SimilarityResult `json:"top_15_matches"`
}

type ReportResult struct {
	models.Result
	Properties int `json:"properties"`
	report.Artifacts
}

type RunResult struct {
	models.Result
	Streets *StreetsResult `json:"step1,omitempty"`
	Parse   *ParseResult   `json:"step2,omitempty"`
	Merge   *MergeResult   `json:"step3,omitempty"`
	Report  *ReportResult  `json:"step4,omitempty"`
}

func (p *Pipeline) fail(stage string, err error) models.Result {
	p.logger.WithError(err).WithField("stage", stage).Error("Stage failed")
	return models.Failure(err)
}

// Streets scores every listing against the reference and picks the most
// representative streets. With a street finder configured it also stores
// street geometry similarity for the merge stage.
func (p *Pipeline) Streets(ctx context.Context, listingsPath string, ref *models.ReferenceProperty) *StreetsResult {
	res := &StreetsResult{TopStreets: []string{}, StreetStatistics: []models.StreetStats{}}
	if err := p.streets(ctx, listingsPath, ref, res); err != nil {
		res.Result = p.fail("streets", err)
		return res
	}
	res.Result = models.Success(fmt.Sprintf("Found %d top streets", len(res.TopStreets)))
	return res
}

func (p *Pipeline) streets(ctx context.Context, listingsPath string, ref *models.ReferenceProperty, res *StreetsResult) error {
	if err := requireFile(listingsPath); err != nil {
		return err
	}
	records, err := p.loader.Load(listingsPath)
	if err != nil {
		return err
	}
	records = p.linker.Dedup(records)
	res.TotalFundaRecords = len(records)
	if len(records) == 0 {
		return fmt.Errorf("%w in listing export %s", ErrNoUsableRows, listingsPath)
	}

	p.fillReference(ctx, ref)

	// Street geometry is an enrichment. Without it scoring uses street names.
	var lookup *streets.Lookup
	if p.deps.Streets != nil {
		lookup, err = p.streetSimilarity(ctx, ref.StreetName, records)
		if err != nil {
			p.logger.WithError(err).Warn("Continuing without street geometry")
			lookup = nil
		} else {
			res.StreetSimilarityFile = p.output(StreetSimilarityFile)
		}
	}

	candidates := make([]models.MergedRecord, len(records))
	for i, rec := range records {
		candidates[i] = models.MergedRecord{PropertyRecord: rec, MatchType: models.MatchNone}
	}

	// Listings are not linked yet, so every one of them is ranked.
	opts := scoring.OptionsFromConfig(p.cfg)
	opts.RequireMatch = false
	ranked := scoring.NewScorer(opts, lookup, p.logger).ScoreAll(candidates, *ref)

	ranking := ranked[:min(rankingSize, len(ranked))]
	res.RankingRecords = len(ranking)
	if err := tables.WriteFile(p.output(RankingFile), func(w io.Writer) error {
		return tables.WriteShortlist(w, ranking)
	}); err != nil {
		return err
	}

	stats := scoring.SelectStreets(ranked, ref.StreetName, scoring.SelectionFromConfig(p.cfg))
	for _, s := range stats {
		res.TopStreets = append(res.TopStreets, s.Street)
	}
	res.StreetStatistics = stats

	best := BestStreets{ReferenceStreet: ref.StreetName, TopStreets: res.TopStreets, StreetStatistics: stats}
	res.BestStreetsFile = p.output(BestStreetsFile)
	if err := tables.WriteJSON(res.BestStreetsFile, best); err != nil {
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"reference": ref.StreetName,
		"streets":   res.TopStreets,
	}).Info("Selected top streets")
	return nil
}

func (p *Pipeline) streetSimilarity(ctx context.Context, reference string, records []models.PropertyRecord) (*streets.Lookup, error) {
	names := make([]string, 0, len(records))
	for _, rec := range records {
		names = append(names, rec.Street)
	}

	result, err := p.deps.Streets.FindSimilar(ctx, reference, names)
	if err != nil {
		return nil, fmt.Errorf("failed to compare street geometry: %w", err)
	}

	lookup := streets.NewLookup()
	lookup.Add(reference, result.Matches)
	if err := lookup.Save(p.output(StreetSimilarityFile)); err != nil {
		return nil, err
	}

	fc := geometry.ProfilesFeatureCollection(result.Profiles.List(), result.Profiles.Lines)
	if err := geometry.SaveFeatureCollection(p.output(StreetProfilesFile), fc, "Street profiles from OpenStreetMap"); err != nil {
		p.logger.WithError(err).Warn("Failed to save street profiles")
	}
	return lookup, nil
}

// Parse extracts Realworks records from RTF files or directories and keeps the
// ones on the given streets. An empty street list keeps everything.
func (p *Pipeline) Parse(inputs []string, streetNames []string) *ParseResult {
	res := &ParseResult{StreetsFound: []string{}, StreetsMissing: []string{}}
	if err := p.parse(inputs, streetNames, res); err != nil {
		res.Result = p.fail("parse", err)
		return res
	}
	res.Result = models.Success(fmt.Sprintf("Processed %d Realworks records", res.ProcessedRecords))
	return res
}

func (p *Pipeline) parse(inputs []string, streetNames []string, res *ParseResult) error {
	paths, err := expandInputs(inputs)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("%w: no rtf files found", ErrNoUsableRows)
	}

	records, failures := realworks.Collect(p.parser.ParseFiles(paths))
	res.ProcessedRecords = len(records)
	res.FailedSegments = len(failures)
	for _, f := range failures {
		p.logger.WithError(f).Debug("Skipped segment")
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: no Realworks records parsed from %d files", ErrNoUsableRows, len(paths))
	}

	res.RealworksFile = p.output(RealworksFile)
	if err := tables.WriteFile(res.RealworksFile, func(w io.Writer) error {
		return tables.WriteRecords(w, records)
	}); err != nil {
		return err
	}

	filtered := records
	if len(streetNames) > 0 {
		var found, missing []string
		filtered, found, missing = realworks.FilterByStreets(records, streetNames, p.cfg.Parser.StreetFilterSimilarity)
		res.StreetsFound = append(res.StreetsFound, found...)
		res.StreetsMissing = append(res.StreetsMissing, missing...)
	}
	res.FilteredRecords = len(filtered)

	res.FilteredFile = p.output(FilteredFile)
	if err := tables.WriteFile(res.FilteredFile, func(w io.Writer) error {
		return tables.WriteRecords(w, filtered)
	}); err != nil {
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"records":  res.ProcessedRecords,
		"filtered": res.FilteredRecords,
		"failures": res.FailedSegments,
		"missing":  res.StreetsMissing,
	}).Info("Processed Realworks exports")
	return nil
}

func expandInputs(inputs []string) ([]string, error) {
	var paths []string
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, fmt.Errorf("input not found: %w", err)
		}
		if !info.IsDir() {
			paths = append(paths, in)
			continue
		}
		found, err := realworks.FindRTFFiles(in)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	return paths, nil
}

// Merge links listings to Realworks records and ranks them against the reference.
func (p *Pipeline) Merge(ctx context.Context, listingsPath, realworksPath string, ref *models.ReferenceProperty) *MergeResult {
	res := &MergeResult{MatchSummary: map[models.MatchType]int{}, Top15Matches: []models.SimilarityResult{}}
	if err := p.merge(ctx, listingsPath, realworksPath, ref, res); err != nil {
		res.Result = p.fail("merge", err)
		return res
	}
	res.Result = models.Success(fmt.Sprintf("Successfully processed %d records and found %d top matches",
		res.TotalRecords, res.Top15Count))
	return res
}

func (p *Pipeline) merge(ctx context.Context, listingsPath, realworksPath string, ref *models.ReferenceProperty, res *MergeResult) error {
	if err := requireFile(listingsPath); err != nil {
		return err
	}
	if err := requireFile(realworksPath); err != nil {
		return err
	}

	listings, err := p.loader.Load(listingsPath)
	if err != nil {
		return err
	}
	listings = p.linker.Dedup(listings)
	if len(listings) == 0 {
		return fmt.Errorf("%w in listing export %s", ErrNoUsableRows, listingsPath)
	}

	secondary, err := tables.ReadFile(realworksPath, tables.ReadRecords)
	if err != nil {
		return err
	}

	link := p.linker.Link
	if p.cfg.Linker.Outer {
		link = p.linker.LinkOuter
	}
	merged := link(listings, secondary)

	res.MergedFile = p.output(MergedFile)
	if err := tables.WriteFile(res.MergedFile, func(w io.Writer) error {
		return tables.WriteMerged(w, merged)
	}); err != nil {
		return err
	}

	return p.shortlist(ctx, "merge", merged, ref, res)
}

// Rank ranks a merged file from an earlier merge again, for instance after
// the weights were changed.
func (p *Pipeline) Rank(ctx context.Context, mergedPath string, ref *models.ReferenceProperty) *MergeResult {
	res := &MergeResult{MatchSummary: map[models.MatchType]int{}, Top15Matches: []models.SimilarityResult{}}
	if err := p.rank(ctx, mergedPath, ref, res); err != nil {
		res.Result = p.fail("rank", err)
		return res
	}
	res.Result = models.Success(fmt.Sprintf("Successfully ranked %d records and found %d top matches",
		res.TotalRecords, res.Top15Count))
	return res
}

func (p *Pipeline) rank(ctx context.Context, mergedPath string, ref *models.ReferenceProperty, res *MergeResult) error {
	if err := requireFile(mergedPath); err != nil {
		return err
	}
	merged, err := tables.ReadFile(mergedPath, tables.ReadMerged)
	if err != nil {
		return err
	}
	if len(merged) == 0 {
		return fmt.Errorf("%w in merged file %s", ErrNoUsableRows, mergedPath)
	}
	res.MergedFile = mergedPath

	return p.shortlist(ctx, "rank", merged, ref, res)
}

// shortlist scores merged records, writes the top matches and records the run.
func (p *Pipeline) shortlist(ctx context.Context, stage string, merged []models.MergedRecord, ref *models.ReferenceProperty, res *MergeResult) error {
	res.TotalRecords = len(merged)
	res.MatchSummary = linker.Summary(merged)
	res.MatchedRecords = 0
	for _, m := range merged {
		if m.MatchType.Linked() {
			res.MatchedRecords++
		}
	}

	if res.MatchedRecords == 0 && p.cfg.Scoring.RequireMatch {
		return fmt.Errorf("%w: no matches found between listings and Realworks data", ErrNoUsableRows)
	}

	p.fillReference(ctx, ref)

	scorer := scoring.NewScorer(scoring.OptionsFromConfig(p.cfg), p.loadLookup(), p.logger)
	shortlist := scorer.Rank(merged, *ref)
	if len(shortlist) == 0 {
		return fmt.Errorf("%w: no candidates left after excluding the reference", ErrNoUsableRows)
	}

	res.Top15File = p.output(Top15File)
	if err := tables.WriteFile(res.Top15File, func(w io.Writer) error {
		return tables.WriteShortlist(w, shortlist)
	}); err != nil {
		return err
	}
	res.Top15Count = len(shortlist)
	res.Top15Matches = shortlist
	res.Summary = scoring.Summary(shortlist)

	// Run history is informational; a failed write does not fail the stage.
	if p.deps.Recorder != nil {
		runID, err := p.deps.Recorder.Record(stage, ref, merged, shortlist)
		if err != nil {
			p.logger.WithError(err).Warn("Failed to record run")
		} else {
			res.RunID = runID
		}
	}
	return nil
}

// Report renders the shortlist file. ref may be nil.
func (p *Pipeline) Report(shortlistPath string, ref *models.ReferenceProperty) *ReportResult {
	res := &ReportResult{}
	if err := p.report(shortlistPath, ref, res); err != nil {
		res.Result = p.fail("report", err)
		return res
	}
	res.Result = models.Success(fmt.Sprintf("Generated reports for %d properties", res.Properties))
	return res
}

func (p *Pipeline) report(shortlistPath string, ref *models.ReferenceProperty, res *ReportResult) error {
	if err := requireFile(shortlistPath); err != nil {
		return err
	}
	shortlist, err := tables.ReadFile(shortlistPath, tables.ReadShortlist)
	if err != nil {
		return err
	}

	artifacts, err := p.renderer.Render(shortlist, ref, p.cfg.OutputDir)
	if err != nil {
		return err
	}
	res.Properties = len(shortlist)
	res.Artifacts = artifacts
	return nil
}

// Run executes all stages in order and stops at the first failure. Outputs of
// the stages that finished are kept.
func (p *Pipeline) Run(ctx context.Context, listingsPath, rtfDir string, ref *models.ReferenceProperty) *RunResult {
	res := &RunResult{}

	res.Streets = p.Streets(ctx, listingsPath, ref)
	if !res.Streets.OK() {
		res.Result = models.Failure(fmt.Errorf("step 1 failed: %s", res.Streets.Message))
		return res
	}

	res.Parse = p.Parse([]string{rtfDir}, res.Streets.TopStreets)
	if !res.Parse.OK() {
		res.Result = models.Failure(fmt.Errorf("step 2 failed: %s", res.Parse.Message))
		return res
	}

	realworksInput := res.Parse.FilteredFile
	if res.Parse.FilteredRecords == 0 {
		p.logger.Warn("No Realworks records on the selected streets, merging all records")
		realworksInput = res.Parse.RealworksFile
	}

	res.Merge = p.Merge(ctx, listingsPath, realworksInput, ref)
	if !res.Merge.OK() {
		res.Result = models.Failure(fmt.Errorf("step 3 failed: %s", res.Merge.Message))
		return res
	}

	res.Report = p.Report(res.Merge.Top15File, ref)
	if !res.Report.OK() {
		res.Result = models.Failure(fmt.Errorf("step 4 failed: %s", res.Report.Message))
		return res
	}

	res.Result = models.Success("Complete workflow executed successfully")
	return res
}
