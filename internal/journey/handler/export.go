package handler

import (
	"encoding/csv"
	"time"

	"freelancer_ops_backend/internal/journey/service"
	"freelancer_ops_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

var pipelineCSVHeaders = []string{"Job ID", "Title", "Client", "Budget", "Source URL", "Phase", "Phase Label", "Last Activity"}

// ExportPipelineCSV streams the pipeline as a spreadsheet friendly CSV.
// GET /api/v1/journey/pipeline.csv
func (h *Handler) ExportPipelineCSV(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	rows, err := h.svc.GetPipeline(c.Request.Context(), identity.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=job-pipeline.csv")

	writer := csv.NewWriter(c.Writer)
	if err := writer.Write(pipelineCSVHeaders); err != nil {
		return
	}
	for _, row := range rows {
		if err := writer.Write(pipelineRecord(row)); err != nil {
			return
		}
	}
	writer.Flush()
}

func pipelineRecord(row service.PipelineRow) []string {
	return []string{
		row.JobID.String(),
		row.Job.Title,
		optional(row.Job.ClientName),
		optional(row.Job.Budget),
		optional(row.Job.SourceURL),
		string(row.CurrentPhase),
		row.Display.Label,
		row.LastActivityAt.UTC().Format(time.RFC3339),
	}
}

func optional(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
