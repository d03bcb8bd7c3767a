package server

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/macroplay/insights/analyze"
	"github.com/macroplay/insights/correlate"
	"github.com/macroplay/insights/export"
	"github.com/macroplay/insights/ingest"
	"github.com/macroplay/insights/normalize"
	"github.com/macroplay/insights/notify"
	"github.com/macroplay/insights/segment"
)

// ============================================================================
// DATASET UPLOAD AND ANALYSIS
// ============================================================================

// uploadDataset ingests the tariffing and recharge files, correlates
// them and computes the analysis snapshot.
func (s *Server) uploadDataset(c *gin.Context) {
	tariffRows, tariffName, err := s.formRows(c, "tarificacion")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rechargeRows, rechargeName, err := s.formRows(c, "recargas")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	joined, err := correlate.Correlate(tariffRows, rechargeRows)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records := analyze.Annotate(joined, s.now())
	result := analyze.Analyze(records)

	name := c.PostForm("name")
	if name == "" {
		name = fmt.Sprintf("%s + %s", tariffName, rechargeName)
	}

	sess := &session{
		name:     name,
		joined:   joined,
		records:  records,
		analysis: result,
	}

	if s.db != nil {
		ds, err := s.db.SaveDataset(c.Request.Context(), name, tariffName, rechargeName, result)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		sess.datasetID = ds.ID
	}

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	s.log.Info("dataset loaded",
		zap.String("name", name),
		zap.Int("tariffRows", len(tariffRows)),
		zap.Int("rechargeRows", len(rechargeRows)),
		zap.Int("correlated", len(joined)))

	c.JSON(http.StatusOK, gin.H{
		"id":       sess.datasetID,
		"name":     name,
		"records":  len(joined),
		"analysis": result,
	})
}

func (s *Server) formRows(c *gin.Context, field string) ([]normalize.RawRow, string, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("missing %s file", field)
	}
	f, err := header.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s: %w", header.Filename, err)
	}
	defer func(f multipart.File) { _ = f.Close() }(f)

	rows, err := ingest.Read(f, header.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", header.Filename, err)
	}
	return rows, header.Filename, nil
}

func (s *Server) listDatasets(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence is disabled"})
		return
	}
	datasets, err := s.db.ListDatasets(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": datasets})
}

func (s *Server) getAnalysis(c *gin.Context) {
	live, sess := s.currentSession()
	if live == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no dataset loaded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":     sess.name,
		"records":  len(sess.records),
		"analysis": sess.analysis,
	})
}

// ============================================================================
// DATE FILTERING
// ============================================================================

type filterRequest struct {
	Start string `json:"start"` // YYYY-MM-DD, empty clears the filter
	End   string `json:"end"`
}

// filterAnalysis narrows the working set to a date window and
// recomputes the analysis. Filtering always starts from the original
// join, so successive filters never compound.
func (s *Server) filterAnalysis(c *gin.Context) {
	live, sess := s.currentSession()
	if live == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no dataset loaded"})
		return
	}

	var req filterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter request"})
		return
	}

	start, err := parseFilterDate(req.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start date"})
		return
	}
	end, err := parseFilterDate(req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end date"})
		return
	}

	filtered := analyze.FilterByDateRange(sess.joined, start, end)
	records := analyze.Annotate(filtered, s.now())
	result := analyze.Analyze(records)

	s.mu.Lock()
	if s.session == live {
		live.records = records
		live.analysis = result
		live.outcome = nil // stale against the new working set
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"records":  len(records),
		"analysis": result,
	})
}

func parseFilterDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", v)
}

// ============================================================================
// SEGMENTATION, INSIGHTS, EXPORT, CAMPAIGNS
// ============================================================================

type segmentRequest struct {
	Criteria string `json:"criteria"`
}

func (s *Server) runSegmentation(c *gin.Context) {
	live, sess := s.currentSession()
	if live == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no dataset loaded"})
		return
	}

	var req segmentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid segmentation request"})
			return
		}
	}

	outcome, err := s.engine.Run(c.Request.Context(), sess.records, req.Criteria)
	if errors.Is(err, segment.ErrBusy) {
		c.JSON(http.StatusConflict, gin.H{"error": "segmentation already in progress"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	if s.session == live {
		live.outcome = outcome
	}
	s.mu.Unlock()

	if s.db != nil && sess.datasetID != uuid.Nil {
		if _, err := s.db.SaveRun(c.Request.Context(), sess.datasetID, req.Criteria, outcome); err != nil {
			s.log.Warn("failed to persist segmentation run", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"source":   outcome.Source,
		"segments": outcome.Segments,
		"records":  len(outcome.Records),
	})
}

func (s *Server) exportCSV(c *gin.Context) {
	live, sess := s.currentSession()
	if live == nil || sess.outcome == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no segmented dataset to export"})
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="segmentacion.csv"`)
	if err := export.WriteCSV(c.Writer, sess.outcome.Records); err != nil {
		s.log.Error("csv export failed", zap.Error(err))
	}
}

func (s *Server) generateInsights(c *gin.Context) {
	live, sess := s.currentSession()
	if live == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no dataset loaded"})
		return
	}
	if s.gem == nil || !s.gem.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI analysis is not configured"})
		return
	}

	report, err := s.gem.StrategicReport(c.Request.Context(), sess.records, sess.analysis)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"analysis":  report,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type campaignRequest struct {
	Segment  string `json:"segment"`
	Template string `json:"template"`
	Language string `json:"language"`
}

// sendCampaign delivers a WhatsApp template to every subscriber in the
// named segment.
func (s *Server) sendCampaign(c *gin.Context) {
	live, sess := s.currentSession()
	if live == nil || sess.outcome == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no segmented dataset"})
		return
	}
	if s.notifier == nil || !s.notifier.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "whatsapp notifications are not configured"})
		return
	}

	var req campaignRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Segment == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "segment name is required"})
		return
	}

	var recipients []notify.Recipient
	for _, r := range sess.outcome.Records {
		if r.Segment == req.Segment {
			recipients = append(recipients, notify.Recipient{MSISDN: r.MSISDN, Segment: r.Segment})
		}
	}
	if len(recipients) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("segment %q has no subscribers", req.Segment)})
		return
	}

	result, err := s.notifier.SendBulk(c.Request.Context(), recipients, req.Template, req.Language, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
