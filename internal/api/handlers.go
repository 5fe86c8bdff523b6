package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Jntvanlanschot/Vastgoedanalyse/config"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/database"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/linker"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/realworks"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/rtf"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/scoring"
)

// maxExportSize bounds an uploaded RTF export.
const maxExportSize = 32 << 20

type Handler struct {
	db     *database.Database
	cfg    *config.Config
	logger *logrus.Logger
	parser *realworks.Parser
	linker *linker.Linker
}

type LinkRequest struct {
	Primary   []models.PropertyRecord `json:"primary" binding:"required"`
	Secondary []models.PropertyRecord `json:"secondary"`
	// Outer also returns unmatched Realworks records.
	Outer bool `json:"outer"`
}

type ScoreRequest struct {
	Reference  json.RawMessage       `json:"reference" binding:"required"`
	Candidates []models.MergedRecord `json:"candidates"`
}

type ParseResponse struct {
	Records        []models.PropertyRecord `json:"records"`
	FailedSegments int                     `json:"failed_segments"`
}

type LinkResponse struct {
	Records      []models.MergedRecord    `json:"records"`
	MatchSummary map[models.MatchType]int `json:"match_summary"`
}

type ScoreResponse struct {
	Results []models.SimilarityResult `json:"results"`
	Summary scoring.ShortlistSummary  `json:"summary"`
}

// NewHandler serves the pipeline operations over HTTP. db may be nil, in
// which case the run history endpoints answer 503.
func NewHandler(db *database.Database, cfg *config.Config, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		db:     db,
		cfg:    cfg,
		logger: logger,
		parser: realworks.NewParser(logger, cfg.Parser.MinSegmentLength),
		linker: linker.NewLinker(logger, cfg.Linker.FuzzyThreshold),
	}
}

// ParseExport reads a raw RTF export from the request body.
func (h *Handler) ParseExport(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxExportSize))
	if err != nil {
		h.logger.WithError(err).Error("Failed to read export")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read export"})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty export"})
		return
	}

	source := c.DefaultQuery("source", "upload")
	records, failures := realworks.Collect(h.parser.ParseText(rtf.Extract(data), source))
	if records == nil {
		records = []models.PropertyRecord{}
	}

	h.logger.WithFields(logrus.Fields{
		"source":   source,
		"records":  len(records),
		"failures": len(failures),
	}).Info("Parsed uploaded export")

	c.JSON(http.StatusOK, ParseResponse{Records: records, FailedSegments: len(failures)})
}

func (h *Handler) LinkRecords(c *gin.Context) {
	var req LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	link := h.linker.Link
	if req.Outer || h.cfg.Linker.Outer {
		link = h.linker.LinkOuter
	}
	merged := link(h.linker.Dedup(req.Primary), req.Secondary)
	if merged == nil {
		merged = []models.MergedRecord{}
	}
	c.JSON(http.StatusOK, LinkResponse{Records: merged, MatchSummary: linker.Summary(merged)})
}

func (h *Handler) ScoreCandidates(c *gin.Context) {
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ref, err := config.ParseReference(req.Reference)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	scorer := scoring.NewScorer(scoring.OptionsFromConfig(h.cfg), nil, h.logger)
	results := scorer.Rank(req.Candidates, *ref)
	if results == nil {
		results = []models.SimilarityResult{}
	}
	c.JSON(http.StatusOK, ScoreResponse{Results: results, Summary: scoring.Summary(results)})
}

func (h *Handler) ListRuns(c *gin.Context) {
	if !h.requireDB(c) {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}

	runs, err := h.db.ListRuns(limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list runs"})
		return
	}
	c.JSON(http.StatusOK, runs)
}

func (h *Handler) GetRunMerged(c *gin.Context) {
	if !h.requireDB(c) {
		return
	}

	matchType := c.Query("match_type")
	if matchType != "" {
		matchType = string(models.ParseMatchType(matchType))
	}

	records, err := h.db.ListMerged(c.Param("id"), matchType)
	if err != nil {
		h.runError(c, err, "Failed to get merged records")
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) GetRunShortlist(c *gin.Context) {
	if !h.requireDB(c) {
		return
	}

	results, err := h.db.ListShortlist(c.Param("id"))
	if err != nil {
		h.runError(c, err, "Failed to get shortlist")
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *Handler) requireDB(c *gin.Context) bool {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Run history is disabled"})
		return false
	}
	return true
}

func (h *Handler) runError(c *gin.Context, err error, msg string) {
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}
	h.logger.WithError(err).Error(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
