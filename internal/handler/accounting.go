package handler

import (
	"strconv"
	"time"

	"github.com/DT191220/YDJX-sub000/internal/model"
	"github.com/DT191220/YDJX-sub000/internal/repository"
	"github.com/DT191220/YDJX-sub000/internal/service"
	"github.com/DT191220/YDJX-sub000/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 凭证相关接口
// ============================================================

// CreateVoucher 录入手工凭证
// POST /api/v1/vouchers
func (h *Handler) CreateVoucher(c *gin.Context) {
	var req struct {
		service.ManualVoucherRequest
		Creator string `json:"creator"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	v, err := h.svc.Vouchers.CreateManual(c.Request.Context(), &req.ManualVoucherRequest, operatorOf(c, req.Creator))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, v)
}

// DeleteVoucher 删除手工凭证
// DELETE /api/v1/vouchers/:id
func (h *Handler) DeleteVoucher(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Vouchers.Delete(c.Request.Context(), id, operatorOf(c, c.Query("operator"))); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, nil)
}

// ReverseVoucher 红字冲销手工凭证
// POST /api/v1/vouchers/:id/reverse
func (h *Handler) ReverseVoucher(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Reason   string `json:"reason"`
		Operator string `json:"operator"`
	}
	// 冲销原因可选，允许空请求体
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ParamError(c, "参数错误: "+err.Error())
			return
		}
	}

	v, err := h.svc.Vouchers.ReverseManual(c.Request.Context(), id, operatorOf(c, req.Operator), req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, v)
}

// GetVoucher 凭证详情
// GET /api/v1/vouchers/:id
func (h *Handler) GetVoucher(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	v, err := h.svc.Vouchers.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, v)
}

// ListVouchers 凭证列表
// GET /api/v1/vouchers?from=2024-05-01&to=2024-05-31&source_type=payment&page=1&page_size=20
func (h *Handler) ListVouchers(c *gin.Context) {
	f := repository.VoucherFilter{SourceType: c.Query("source_type")}

	if raw := c.Query("from"); raw != "" {
		from, ok := queryDate(c, "from")
		if !ok {
			return
		}
		f.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, ok := queryDate(c, "to")
		if !ok {
			return
		}
		// to 为闭区间，查询按次日零点截止
		end := to.AddDate(0, 0, 1)
		f.To = &end
	}
	if raw := c.Query("source_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.ParamError(c, "source_id 参数错误")
			return
		}
		f.SourceID = &id
	}

	f.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	f.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 100 {
		f.PageSize = 20
	}

	list, total, err := h.svc.Vouchers.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":      list,
		"total":     total,
		"page":      f.Page,
		"page_size": f.PageSize,
	})
}

// ============================================================
// 会计科目相关接口
// ============================================================

// CreateSubject 新增科目
// POST /api/v1/subjects
func (h *Handler) CreateSubject(c *gin.Context) {
	var req service.CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	s, err := h.svc.Subjects.Create(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, s)
}

// UpdateSubject 修改科目名称
// PUT /api/v1/subjects/:code
func (h *Handler) UpdateSubject(c *gin.Context) {
	var req service.UpdateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.Subjects.Update(c.Request.Context(), c.Param("code"), &req); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, nil)
}

// DeactivateSubject 停用科目
// POST /api/v1/subjects/:code/deactivate
func (h *Handler) DeactivateSubject(c *gin.Context) {
	if err := h.svc.Subjects.Deactivate(c.Request.Context(), c.Param("code")); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, nil)
}

// DeleteSubject 删除未被引用的科目
// DELETE /api/v1/subjects/:code
func (h *Handler) DeleteSubject(c *gin.Context) {
	if err := h.svc.Subjects.Delete(c.Request.Context(), c.Param("code")); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, nil)
}

// GetSubject 科目详情
// GET /api/v1/subjects/:code
func (h *Handler) GetSubject(c *gin.Context) {
	s, err := h.svc.Subjects.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, s)
}

// ListSubjects 科目列表
// GET /api/v1/subjects?type=expense&active=true
func (h *Handler) ListSubjects(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	list, err := h.svc.Subjects.List(c.Request.Context(), c.Query("type"), activeOnly)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, list)
}

// SetUsage 修改科目用途映射，只影响之后生成的凭证
// PUT /api/v1/subject-usages/:usage
func (h *Handler) SetUsage(c *gin.Context) {
	var req service.SetUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.Subjects.SetUsage(c.Request.Context(), c.Param("usage"), &req); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, nil)
}

// ListUsages 科目用途映射
// GET /api/v1/subject-usages
func (h *Handler) ListUsages(c *gin.Context) {
	list, err := h.svc.Subjects.ListUsages(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, list)
}

// ============================================================
// 报表相关接口
// ============================================================

// ProfitMonthly 月度利润表
// GET /api/v1/reports/profit-monthly?yearMonth=2024-05
func (h *Handler) ProfitMonthly(c *gin.Context) {
	yearMonth := c.Query("yearMonth")
	if yearMonth == "" {
		yearMonth = time.Now().Format(model.MonthLayout)
	}
	r, err := h.svc.Report.ProfitMonthly(c.Request.Context(), yearMonth)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, r)
}

// ProfitYearly 年度利润表
// GET /api/v1/reports/profit-yearly?year=2024
func (h *Handler) ProfitYearly(c *gin.Context) {
	year, err := strconv.Atoi(c.DefaultQuery("year", strconv.Itoa(time.Now().Year())))
	if err != nil {
		response.ParamError(c, "year 参数错误")
		return
	}
	r, err := h.svc.Report.ProfitYearly(c.Request.Context(), year)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, r)
}
