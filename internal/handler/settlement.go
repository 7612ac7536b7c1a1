package handler

import (
	"strconv"

	"github.com/DT191220/YDJX-sub000/internal/service"
	"github.com/DT191220/YDJX-sub000/pkg/response"

	"github.com/gin-gonic/gin"
)

// MonthRequest 按月批量操作
type MonthRequest struct {
	Month string `json:"month" binding:"required"` // YYYY-MM
}

// ============================================================
// 教练工资相关接口
// ============================================================

// GenerateSalaries 生成当月工资草稿
// POST /api/v1/salaries/generate
func (h *Handler) GenerateSalaries(c *gin.Context) {
	var req MonthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	n, err := h.svc.Salary.Generate(c.Request.Context(), req.Month)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"month": req.Month, "generated": n})
}

// RefreshSalaries 按最新考试数据重算当月未发放工资
// POST /api/v1/salaries/refresh
func (h *Handler) RefreshSalaries(c *gin.Context) {
	var req MonthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	n, err := h.svc.Salary.Refresh(c.Request.Context(), req.Month)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"month": req.Month, "refreshed": n})
}

// BatchDeleteSalaries 删除当月未发放的工资单
// DELETE /api/v1/salaries/batch?month=2024-05
func (h *Handler) BatchDeleteSalaries(c *gin.Context) {
	month := c.Query("month")
	if month == "" {
		response.ParamError(c, "month 参数不能为空")
		return
	}
	n, err := h.svc.Salary.BatchDelete(c.Request.Context(), month)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"month": month, "deleted": n})
}

// UpdateSalary 修改工资单人工字段或状态
// PUT /api/v1/salaries/:id
func (h *Handler) UpdateSalary(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		service.UpdateSalaryRequest
		Operator string `json:"operator"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	rec, err := h.svc.Salary.Update(c.Request.Context(), id, &req.UpdateSalaryRequest, operatorOf(c, req.Operator))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, rec)
}

// ConfirmSalary 草稿确认
// POST /api/v1/salaries/:id/confirm
func (h *Handler) ConfirmSalary(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	rec, err := h.svc.Salary.Confirm(c.Request.Context(), id, operatorOf(c, c.Query("operator")))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, rec)
}

// PaySalary 确认发放并生成工资凭证
// POST /api/v1/salaries/:id/pay
func (h *Handler) PaySalary(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	rec, err := h.svc.Salary.ConfirmPayment(c.Request.Context(), id, operatorOf(c, c.Query("operator")))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, rec)
}

// ListSalaries 当月工资单
// GET /api/v1/salaries?month=2024-05
func (h *Handler) ListSalaries(c *gin.Context) {
	list, err := h.svc.Salary.List(c.Request.Context(), c.Query("month"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, list)
}

// CreateSalaryConfig 新增工资标准
// POST /api/v1/salaries/configs
func (h *Handler) CreateSalaryConfig(c *gin.Context) {
	var req service.SalaryConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	cfg, err := h.svc.Salary.CreateConfig(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, cfg)
}

// ============================================================
// 运营费用相关接口
// ============================================================

// CreateExpenseConfig 新增固定费用配置
// POST /api/v1/expenses/configs
func (h *Handler) CreateExpenseConfig(c *gin.Context) {
	var req service.ExpenseConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	cfg, err := h.svc.Expense.CreateConfig(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, cfg)
}

// ListExpenseConfigs 固定费用配置列表
// GET /api/v1/expenses/configs?active=true
func (h *Handler) ListExpenseConfigs(c *gin.Context) {
	list, err := h.svc.Expense.ListConfigs(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, list)
}

// GenerateExpenses 生成当月待付费用
// POST /api/v1/expenses/generate
func (h *Handler) GenerateExpenses(c *gin.Context) {
	var req MonthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	n, err := h.svc.Expense.Generate(c.Request.Context(), req.Month)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"month": req.Month, "generated": n})
}

// ListExpenses 当月费用
// GET /api/v1/expenses?month=2024-05&status=pending
func (h *Handler) ListExpenses(c *gin.Context) {
	list, err := h.svc.Expense.ListMonthly(c.Request.Context(), c.Query("month"), c.Query("status"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, list)
}

// PayExpense 确认支付
// POST /api/v1/expenses/:id/pay
func (h *Handler) PayExpense(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		PayMethod string `json:"pay_method"`
		Operator  string `json:"operator"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ParamError(c, "参数错误: "+err.Error())
			return
		}
	}

	rec, err := h.svc.Expense.ConfirmPayment(c.Request.Context(), id, operatorOf(c, req.Operator), req.PayMethod)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, rec)
}

// RevertExpense 撤销支付，冲销已生成的凭证
// POST /api/v1/expenses/:id/revert
func (h *Handler) RevertExpense(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	rec, err := h.svc.Expense.RevertPayment(c.Request.Context(), id, operatorOf(c, c.Query("operator")))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, rec)
}

// ============================================================
// 费用分摊相关接口
// ============================================================

// CreateAllocation 新增年度费用分摊
// POST /api/v1/allocations
func (h *Handler) CreateAllocation(c *gin.Context) {
	var req service.AllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	a, err := h.svc.Allocation.Create(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, a)
}

// ListAllocations 年度费用分摊
// GET /api/v1/allocations?year=2024
func (h *Handler) ListAllocations(c *gin.Context) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		response.ParamError(c, "year 参数错误")
		return
	}
	list, err := h.svc.Allocation.List(c.Request.Context(), year)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, list)
}

// DeleteAllocation 删除费用分摊
// DELETE /api/v1/allocations/:id
func (h *Handler) DeleteAllocation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Allocation.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, nil)
}
