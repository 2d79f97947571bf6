package http

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"contestlet-backend/internal/common/config"
	apperrors "contestlet-backend/internal/common/errors"
	"contestlet-backend/internal/common/middleware"
	"contestlet-backend/internal/common/response"
	"contestlet-backend/internal/features/contest/models"
	"contestlet-backend/internal/features/contest/repository"
	"contestlet-backend/internal/features/contest/service"
)

type Handler struct {
	cfg      *config.Config
	contests *service.Service
}

func NewHandler(cfg *config.Config, contests *service.Service) *Handler {
	return &Handler{cfg: cfg, contests: contests}
}

// RegisterRoutes mounts the public contest endpoints, the sponsor workflow
// group and the admin approval/winner groups.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	contests := r.Group("/contests")
	{
		contests.GET("/active", h.listActive)
		contests.GET("/:id", h.get)
		contests.POST("/:id/enter", middleware.RequireAuth(), h.enter)
		contests.DELETE("/:id", middleware.RequireAuth(), h.delete)
		contests.GET("/:id/entries", middleware.RequireAuth(), h.listEntries)
	}

	workflow := r.Group("/sponsor/workflow/contests", middleware.RequireAuth())
	{
		workflow.POST("/draft", h.createDraft)
		workflow.PUT("/:id/draft", h.updateDraft)
		workflow.POST("/:id/submit", h.submit)
		workflow.POST("/:id/withdraw", h.withdraw)
		workflow.GET("/drafts", h.listDrafts)
		workflow.GET("/pending", h.listPending)
	}

	approval := r.Group("/admin/approval", middleware.RequireAdmin())
	{
		approval.GET("/queue", h.approvalQueue)
		approval.POST("/contests/:id/approve", h.approve)
		approval.POST("/contests/:id/reject", h.reject)
		approval.POST("/contests/bulk-approve", h.bulkApprove)
		approval.GET("/statistics", h.approvalStatistics)
		approval.GET("/contests/:id/audit", h.approvalAudit)
	}

	admin := r.Group("/admin/contests", middleware.RequireAdmin())
	{
		admin.POST("/:id/select-winners", h.selectWinners)
		admin.GET("/:id/winners", h.listWinners)
		admin.POST("/:id/winners/:position/manage", h.manageWinner)
		admin.POST("/:id/winners/notify", h.notifyWinners)
		admin.GET("/:id/winners/stats", h.winnerStats)
	}
}

func (h *Handler) pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(h.cfg.Pagination.DefaultPageSize)))
	if err != nil || size < 1 {
		size = h.cfg.Pagination.DefaultPageSize
	}
	if size > h.cfg.Pagination.MaxPageSize {
		size = h.cfg.Pagination.MaxPageSize
	}
	return page, size
}

func contestID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, apperrors.New(apperrors.ErrCodeBadRequest, "invalid contest id")
	}
	return id, nil
}

func (h *Handler) listActive(c *gin.Context) {
	page, size := h.pageParams(c)
	contests, total, err := h.contests.ListActive(c.Request.Context(), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, response.Page{Items: contests, Pagination: response.NewPagination(page, size, total)})
}

func (h *Handler) get(c *gin.Context) {
	id, err := contestID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	claims, _ := middleware.GetClaims(c)
	contest, err := h.contests.Get(c.Request.Context(), claims, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, contest)
}

func (h *Handler) enter(c *gin.Context) {
	id, err := contestID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var input models.EnterInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			response.Error(c, apperrors.New(apperrors.ErrCodeBadRequest, "invalid entry body"))
			return
		}
	}

	claims, _ := middleware.GetClaims(c)
	entry, err := h.contests.Enter(c.Request.Context(), claims, id, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

func (h *Handler) delete(c *gin.Context) {
	id, err := contestID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	claims, _ := middleware.GetClaims(c)
	if err := h.contests.Delete(c.Request.Context(), claims, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OKWithMessage(c, nil, "contest deleted")
}

func (h *Handler) listEntries(c *gin.Context) {
	id, err := contestID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	page, size := h.pageParams(c)
	claims, _ := middleware.GetClaims(c)
	entries, total, err := h.contests.ListEntries(c.Request.Context(), claims, id, page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, response.Page{Items: entries, Pagination: response.NewPagination(page, size, total)})
}

func bindDraftInput(c *gin.Context) (*models.ContestDraftInput, error) {
	var input models.ContestDraftInput
	if err := c.ShouldBindJSON(&input); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "invalid contest draft").
			WithDetail("cause", err.Error())
	}
	return &input, nil
}

func (h *Handler) createDraft(c *gin.Context) {
	input, err := bindDraftInput(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	claims, _ := middleware.GetClaims(c)
	contest, err := h.contests.CreateDraft(c.Request.Context(), claims, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, contest)
}

func (h *Handler) updateDraft(c *gin.Context) {
	id, err := contestID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	input, err := bindDraftInput(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	claims, _ := middleware.GetClaims(c)
	contest, err := h.contests.UpdateDraft(c.Request.Context(), claims, id, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, contest)
}

func (h *Handler) submit(c *gin.Context) {
	id, err := contestID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var input models.SubmitInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			response.Error(c, apperrors.New(apperrors.ErrCodeBadRequest, "invalid submit body"))
			return
		}
	}

	claims, _ := middleware.GetClaims(c)
	contest, err := h.contests.Submit(c.Request.Context(), claims, id, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, contest)
}

func (h *Handler) withdraw(c *gin.Context) {
	id, err := contestID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	claims, _ := middleware.GetClaims(c)
	contest, err := h.contests.Withdraw(c.Request.Context(), claims, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, contest)
}

func (h *Handler) listDrafts(c *gin.Context) {
	h.listMine(c, []models.Status{models.StatusDraft, models.StatusRejected})
}

func (h *Handler) listPending(c *gin.Context) {
	h.listMine(c, []models.Status{models.StatusAwaitingApproval})
}

func (h *Handler) listMine(c *gin.Context, statuses []models.Status) {
	page, size := h.pageParams(c)
	claims, _ := middleware.GetClaims(c)
	contests, total, err := h.contests.ListMine(c.Request.Context(), claims, statuses, page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, response.Page{Items: contests, Pagination: response.NewPagination(page, size, total)})
}

func (h *Handler) approvalQueue(c *gin.Context) {
	page, size := h.pageParams(c)
	filter := repository.QueueFilter{
		Search: c.Query("search"),
		Page:   page,
		Size:   size,
	}
	if v, err := strconv.Atoi(c.DefaultQuery("min_waiting_days", "0")); err == nil {
		filter.MinWaitingDays = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("max_waiting_days", "0")); err == nil {
		filter.MaxWaitingDays = v
	}

	claims, _ := middleware.GetClaims(c)
	items, total, err := h.contests.ApprovalQueue(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, response.Page{Items: items, Pagination: response.NewPagination(page, size, total)})
}

func (h *Handler) approve(c *gin.Context) {
	id, err := contestID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var input models.ApproveInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			response.Error(c, apperrors.New(apperrors.ErrCodeBadRequest, "invalid approve body"))
			return
		}
	}

	claims, _ := middleware.GetClaims(c)
	contest, err := h.contests.Approve(c.Request.Context(), claims, id, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, contest)
}

func (h *Handler) reject(c *gin.Context) {
	id, err := contestID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var input models.RejectInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, apperrors.New(apperrors.ErrCodeValidation, "a rejection reason is required"))
		return
	}

	claims, _ := middleware.GetClaims(c)
	contest, err := h.contests.Reject(c.Request.Context(), claims, id, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, contest)
}

func (h *Handler) bulkApprove(c *gin.Context) {
	var input models.BulkApprovalInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, apperrors.New(apperrors.ErrCodeValidation, "contest_ids are required"))
		return
	}

	claims, _ := middleware.GetClaims(c)
	results, err := h.contests.BulkApproval(c.Request.Context(), claims, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"results": results})
}

func (h *Handler) approvalStatistics(c *gin.Context) {
	claims, _ := middleware.GetClaims(c)
	stats, err := h.contests.ApprovalStatistics(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

func (h *Handler) approvalAudit(c *gin.Context) {
	id, err := contestID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	claims, _ := middleware.GetClaims(c)
	approvals, err := h.contests.ApprovalHistory(c.Request.Context(), claims, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	statuses, err := h.contests.StatusHistory(c.Request.Context(), claims, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"approvals": approvals, "status_changes": statuses})
}

func (h *Handler) selectWinners(c *gin.Context) {
	id, err := contestID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var input models.SelectWinnersInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, apperrors.New(apperrors.ErrCodeValidation, "winner_count between 1 and 50 is required"))
		return
	}

	claims, _ := middleware.GetClaims(c)
	winners, err := h.contests.SelectWinners(c.Request.Context(), claims, id, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"winners": winners})
}

func (h *Handler) listWinners(c *gin.Context) {
	id, err := contestID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	claims, _ := middleware.GetClaims(c)
	winners, err := h.contests.ListWinners(c.Request.Context(), claims, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"winners": winners})
}

func (h *Handler) manageWinner(c *gin.Context) {
	id, err := contestID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	position, err := strconv.Atoi(c.Param("position"))
	if err != nil || position < 1 {
		response.Error(c, apperrors.New(apperrors.ErrCodeBadRequest, "invalid winner position"))
		return
	}

	var input struct {
		Action string `json:"action" binding:"required"` // reselect
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, apperrors.New(apperrors.ErrCodeBadRequest, "action is required"))
		return
	}
	if input.Action != "reselect" {
		response.Error(c, apperrors.New(apperrors.ErrCodeBadRequest, "unsupported action").
			WithDetail("action", input.Action))
		return
	}

	claims, _ := middleware.GetClaims(c)
	winner, err := h.contests.ReselectWinner(c.Request.Context(), claims, id, position)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, winner)
}

func (h *Handler) notifyWinners(c *gin.Context) {
	id, err := contestID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var input models.NotifyWinnersInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			response.Error(c, apperrors.New(apperrors.ErrCodeBadRequest, "invalid notify body"))
			return
		}
	}

	claims, _ := middleware.GetClaims(c)
	queued, err := h.contests.NotifyWinners(c.Request.Context(), claims, id, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"queued": queued, "test": input.Test})
}

func (h *Handler) winnerStats(c *gin.Context) {
	id, err := contestID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	claims, _ := middleware.GetClaims(c)
	stats, err := h.contests.WinnerStats(c.Request.Context(), claims, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}
