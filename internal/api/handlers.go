package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/zulandar/timekeeper/internal/alert"
	"github.com/zulandar/timekeeper/internal/apperr"
	"github.com/zulandar/timekeeper/internal/justification"
	"github.com/zulandar/timekeeper/internal/ledger"
	"github.com/zulandar/timekeeper/internal/models"
	"github.com/zulandar/timekeeper/internal/tracker"
	"github.com/zulandar/timekeeper/internal/worker"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type handlers struct {
	svc *tracker.Service
	log *zap.Logger
	now func() time.Time
}

// --- alerts ---

type alertQuery struct {
	alert.Criteria
	Ref string `form:"ref"`
}

func (h *handlers) queryAlerts(c *gin.Context) ([]alert.Alert, time.Time, bool) {
	var q alertQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return nil, time.Time{}, false
	}
	ref := h.now()
	if q.Ref != "" {
		d, err := ledger.ParseDate(q.Ref)
		if err != nil {
			respondError(c, err)
			return nil, time.Time{}, false
		}
		ref = d
	}
	alerts, err := h.svc.FilterAlerts(c.Request.Context(), ref, q.Criteria)
	if err != nil {
		respondError(c, err)
		return nil, time.Time{}, false
	}
	return alerts, ref, true
}

func (h *handlers) listAlerts(c *gin.Context) {
	alerts, ref, ok := h.queryAlerts(c)
	if !ok {
		return
	}
	if alerts == nil {
		alerts = []alert.Alert{}
	}
	c.JSON(http.StatusOK, gin.H{
		"reference_date": ref.Format(ledger.DateLayout),
		"count":          len(alerts),
		"alerts":         alerts,
	})
}

func (h *handlers) exportAlerts(c *gin.Context) {
	alerts, ref, ok := h.queryAlerts(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := alert.WriteXLSX(&buf, alerts); err != nil {
		respondError(c, err)
		return
	}
	filename := fmt.Sprintf("alerts-%s.xlsx", ref.Format(ledger.DateLayout))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

type keysRequest struct {
	Keys []alert.Key `json:"keys" binding:"required,min=1"`
}

type keyResult struct {
	Key   alert.Key `json:"key"`
	OK    bool      `json:"ok"`
	Error string    `json:"error,omitempty"`
}

func (h *handlers) archiveAlerts(c *gin.Context) {
	h.bulk(c, h.svc.ArchiveAlerts)
}

func (h *handlers) restoreAlerts(c *gin.Context) {
	h.bulk(c, h.svc.RestoreAlerts)
}

func (h *handlers) bulk(c *gin.Context, apply func([]alert.Key) []alert.Result) {
	var req keysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	results := apply(req.Keys)
	out := make([]keyResult, len(results))
	failed := 0
	for i, r := range results {
		out[i] = keyResult{Key: r.Key, OK: r.Err == nil}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
			failed++
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": out, "failed": failed})
}

// --- workers ---

type createWorkerRequest struct {
	Name              string          `json:"name" binding:"required"`
	Department        string          `json:"department" binding:"required"`
	Role              string          `json:"role"`
	TargetHoursPerDay decimal.Decimal `json:"target_hours_per_day"`
	ShiftStart        string          `json:"shift_start" binding:"required"`
}

type patchWorkerRequest struct {
	Name              *string          `json:"name"`
	Department        *string          `json:"department"`
	Role              *string          `json:"role"`
	TargetHoursPerDay *decimal.Decimal `json:"target_hours_per_day"`
	ShiftStart        *string          `json:"shift_start"`
}

func (r patchWorkerRequest) updates() map[string]interface{} {
	u := make(map[string]interface{})
	if r.Name != nil {
		u["name"] = *r.Name
	}
	if r.Department != nil {
		u["department"] = *r.Department
	}
	if r.Role != nil {
		u["role"] = *r.Role
	}
	if r.TargetHoursPerDay != nil {
		u["target_hours_per_day"] = *r.TargetHoursPerDay
	}
	if r.ShiftStart != nil {
		u["shift_start"] = *r.ShiftStart
	}
	return u
}

func (h *handlers) listWorkers(c *gin.Context) {
	workers, err := worker.List(h.svc.DB(), worker.ListFilters{
		Department: c.Query("department"),
		Role:       c.Query("role"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]workerView, len(workers))
	for i := range workers {
		out[i] = newWorkerView(&workers[i])
	}
	c.JSON(http.StatusOK, gin.H{"workers": out})
}

func (h *handlers) createWorker(c *gin.Context) {
	var req createWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	w, err := worker.Create(h.svc.DB(), worker.CreateOpts{
		Name:              req.Name,
		Department:        req.Department,
		Role:              req.Role,
		TargetHoursPerDay: req.TargetHoursPerDay,
		ShiftStart:        req.ShiftStart,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newWorkerView(w))
}

func (h *handlers) updateWorker(c *gin.Context) {
	var req patchWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	w, err := h.svc.UpdateWorker(c.Param("id"), req.updates())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newWorkerView(w))
}

func (h *handlers) deleteWorker(c *gin.Context) {
	if err := h.svc.DeleteWorker(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- records ---

type createRecordRequest struct {
	WorkerID    string          `json:"worker_id" binding:"required"`
	Description string          `json:"description" binding:"required"`
	Category    string          `json:"category" binding:"required"`
	Hours       decimal.Decimal `json:"hours"`
	Date        string          `json:"date" binding:"required"`
}

type patchRecordRequest struct {
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	Hours       *decimal.Decimal `json:"hours"`
	Date        *string          `json:"date"`
}

func (h *handlers) listRecords(c *gin.Context) {
	recs, err := ledger.List(h.svc.DB(), ledger.ListFilters{
		WorkerID: c.Query("worker_id"),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	workers := make(map[string]*models.Worker)
	out := make([]recordView, len(recs))
	for i := range recs {
		w, ok := workers[recs[i].WorkerID]
		if !ok {
			w, _ = worker.Get(h.svc.DB(), recs[i].WorkerID)
			workers[recs[i].WorkerID] = w
		}
		out[i] = newRecordView(&recs[i], w)
	}
	c.JSON(http.StatusOK, gin.H{"records": out})
}

func (h *handlers) createRecord(c *gin.Context) {
	var req createRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	rec, err := h.svc.CreateRecord(ledger.CreateOpts{
		WorkerID:    req.WorkerID,
		Description: req.Description,
		Category:    req.Category,
		Hours:       req.Hours,
		Date:        req.Date,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.writeRecord(c, http.StatusCreated, rec)
}

func (h *handlers) updateRecord(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req patchRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	rec, err := h.svc.UpdateRecord(id, ledger.Patch{
		Description: req.Description,
		Category:    req.Category,
		Hours:       req.Hours,
		Date:        req.Date,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.writeRecord(c, http.StatusOK, rec)
}

func (h *handlers) deleteRecord(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteRecord(id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) writeRecord(c *gin.Context, status int, rec *models.TaskRecord) {
	w, _ := worker.Get(h.svc.DB(), rec.WorkerID)
	c.JSON(status, newRecordView(rec, w))
}

// --- justifications ---

type createJustificationRequest struct {
	WorkerID string `json:"worker_id" binding:"required"`
	Date     string `json:"date" binding:"required"`
}

type reviewRequest struct {
	Status string `json:"status" binding:"required,oneof=approved rejected"`
}

func (h *handlers) listJustifications(c *gin.Context) {
	list, err := justification.List(h.svc.DB(), c.Query("worker_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]justificationView, len(list))
	for i := range list {
		out[i] = newJustificationView(&list[i])
	}
	c.JSON(http.StatusOK, gin.H{"justifications": out})
}

func (h *handlers) justificationExists(c *gin.Context) {
	workerID, date := c.Query("worker_id"), c.Query("date")
	if workerID == "" {
		respondError(c, apperr.Invalid("worker_id", "is required"))
		return
	}
	if _, err := ledger.ParseDate(date); err != nil {
		respondError(c, err)
		return
	}
	ok, err := justification.Exists(h.svc.DB(), workerID, date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"worker_id": workerID, "date": date, "exists": ok})
}

func (h *handlers) createJustification(c *gin.Context) {
	var req createJustificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	j, err := h.svc.CreateJustification(req.WorkerID, req.Date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newJustificationView(j))
}

func (h *handlers) reviewJustification(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.ReviewJustification(id, req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}

// --- timers ---

func (h *handlers) activeTimer(c *gin.Context) {
	st, ok, err := h.svc.ActiveTimer()
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"running": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": true, "timer": st})
}

func (h *handlers) startTimer(c *gin.Context) {
	id, ok := uintParam(c, "task_id")
	if !ok {
		return
	}
	st, err := h.svc.StartTimer(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": true, "timer": st})
}

func (h *handlers) stopTimer(c *gin.Context) {
	id, ok := uintParam(c, "task_id")
	if !ok {
		return
	}
	st, stopped, err := h.svc.StopTimer(id)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := gin.H{"stopped": stopped}
	if stopped {
		resp["timer"] = st
		resp["hours"] = st.Hours()
	}
	c.JSON(http.StatusOK, resp)
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		respondError(c, apperr.Invalid(name, "must be a positive integer, got %q", c.Param(name)))
		return 0, false
	}
	return uint(v), true
}
