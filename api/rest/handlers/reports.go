package handlers

import (
	"encoding/csv"
	"fmt"
	"iter"
	"net/http"
	"strconv"
	"time"

	"container-dispatch/core/dispatch"
	"container-dispatch/core/models"

	"github.com/gorilla/mux"
)

// csvHeader is the fixed column order of the export
var csvHeader = []string{
	"job_number", "customer", "uplift", "offload", "job_start", "size", "weight",
	"container_number", "reference", "dg", "driver", "stage", "completed", "created_at", "updated_at",
}

// ReportHandler serves completed-job reports
type ReportHandler struct {
	svc *dispatch.Service
}

// NewReportHandler creates a new report handler
func NewReportHandler(svc *dispatch.Service) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// CompletedInRange handles GET /api/reports/jobs?from=&to=
func (h *ReportHandler) CompletedInRange(w http.ResponseWriter, r *http.Request) {
	seq, err := h.rangeSeq(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJobs(w, r, seq)
}

// CompletedOnDate handles GET /api/reports/jobs/date/{date}
func (h *ReportHandler) CompletedOnDate(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	day, err := h.svc.ParseDate(mux.Vars(r)["date"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	seq, err := h.svc.ListCompletedOnDate(r.Context(), actor, day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJobs(w, r, seq)
}

// ExportCSV handles GET /api/reports/jobs/export?from=&to=
func (h *ReportHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	seq, err := h.rangeSeq(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// pull the first row before committing to a 200 so storage errors still map to a status
	next, stop := iter.Pull2(seq)
	defer stop()
	first, err, ok := next()
	if err != nil {
		writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("jobs_%s_%s.csv", r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write(csvHeader)
	loc := h.svc.Location()
	for ok {
		_ = cw.Write(csvRow(first, loc))
		first, err, ok = next()
		if err != nil {
			// headers are gone; the truncated body is all the client gets
			logRequestError(r, "csv export aborted", err)
			break
		}
	}
	cw.Flush()
}

// CreatedToday handles GET /api/reports/today
func (h *ReportHandler) CreatedToday(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	seq, err := h.svc.JobsCreatedToday(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJobs(w, r, seq)
}

// Summary handles GET /api/reports/summary
func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := h.svc.Summary(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *ReportHandler) rangeSeq(r *http.Request) (iter.Seq2[*models.Job, error], error) {
	actor, err := actorFrom(r)
	if err != nil {
		return nil, err
	}
	q := r.URL.Query()
	if q.Get("from") == "" || q.Get("to") == "" {
		return nil, fmt.Errorf("%w: from and to are required", dispatch.ErrInvalidRange)
	}
	from, err := h.svc.ParseDate(q.Get("from"))
	if err != nil {
		return nil, err
	}
	to, err := h.svc.ParseDate(q.Get("to"))
	if err != nil {
		return nil, err
	}
	return h.svc.ListCompletedInRange(r.Context(), actor, from, to)
}

func csvRow(job *models.Job, loc *time.Location) []string {
	var start, driver string
	if job.JobStart != nil {
		start = job.JobStart.In(loc).Format(time.RFC3339)
	}
	if job.Driver != nil {
		driver = job.Driver.Username
	}
	return []string{
		job.JobNumber, job.Customer, job.Uplift, job.Offload, start, job.Size, job.Weight,
		job.ContainerNumber, job.Reference, strconv.FormatBool(job.DangerousGoods), driver,
		string(job.CurrentStage()), strconv.FormatBool(job.IsCompleted),
		job.CreatedAt.In(loc).Format(time.RFC3339), job.UpdatedAt.In(loc).Format(time.RFC3339),
	}
}
