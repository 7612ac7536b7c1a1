package handler

import (
	"github.com/DT191220/YDJX-sub000/internal/config"
	"github.com/DT191220/YDJX-sub000/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter 配置路由
func SetupRouter(svc *service.Services, cfg *config.Config, log *zap.Logger) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	r := gin.New()

	// 注册中间件
	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(log))
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware())

	h := NewHandler(svc, log)

	api := r.Group("/api/v1")
	if cfg.Auth.Enabled {
		api.Use(AuthMiddleware(cfg.Auth.JWTSecret))
	} else {
		api.Use(HeaderOperatorMiddleware())
	}
	{
		// 学员收费
		api.POST("/payments", h.AddPayment)
		api.DELETE("/payments/:id", h.DeletePayment)
		api.POST("/refunds", h.Refund)
		api.POST("/discounts", h.Discount)

		students := api.Group("/students/:id")
		{
			students.GET("/ledger", h.GetLedger)
			students.GET("/payments", h.ListPayments)
			students.GET("/adjustments", h.ListAdjustments)
			students.GET("/submission-preview", h.SubmissionPreview)
		}

		// 教练工资
		salaries := api.Group("/salaries")
		{
			salaries.GET("", h.ListSalaries)
			salaries.POST("/generate", h.GenerateSalaries)
			salaries.POST("/refresh", h.RefreshSalaries)
			salaries.DELETE("/batch", h.BatchDeleteSalaries)
			salaries.POST("/configs", h.CreateSalaryConfig)
			salaries.PUT("/:id", h.UpdateSalary)
			salaries.POST("/:id/confirm", h.ConfirmSalary)
			salaries.POST("/:id/pay", h.PaySalary)
		}

		// 总部上交
		hq := api.Group("/headquarter-configs")
		{
			hq.GET("", h.ListHeadquarterConfigs)
			hq.GET("/active", h.ActiveHeadquarterConfig)
			hq.POST("", h.CreateHeadquarterConfig)
			hq.POST("/:id/deactivate", h.DeactivateHeadquarterConfig)
		}

		// 运营费用
		expenses := api.Group("/expenses")
		{
			expenses.GET("", h.ListExpenses)
			expenses.POST("/configs", h.CreateExpenseConfig)
			expenses.GET("/configs", h.ListExpenseConfigs)
			expenses.POST("/generate", h.GenerateExpenses)
			expenses.POST("/:id/pay", h.PayExpense)
			expenses.POST("/:id/revert", h.RevertExpense)
		}

		// 费用分摊
		allocations := api.Group("/allocations")
		{
			allocations.GET("", h.ListAllocations)
			allocations.POST("", h.CreateAllocation)
			allocations.DELETE("/:id", h.DeleteAllocation)
		}

		// 报表
		reports := api.Group("/reports")
		{
			reports.GET("/profit-monthly", h.ProfitMonthly)
			reports.GET("/profit-yearly", h.ProfitYearly)
		}

		// 凭证
		vouchers := api.Group("/vouchers")
		{
			vouchers.GET("", h.ListVouchers)
			vouchers.POST("", h.CreateVoucher)
			vouchers.GET("/:id", h.GetVoucher)
			vouchers.DELETE("/:id", h.DeleteVoucher)
			vouchers.POST("/:id/reverse", h.ReverseVoucher)
		}

		// 会计科目
		subjects := api.Group("/subjects")
		{
			subjects.GET("", h.ListSubjects)
			subjects.POST("", h.CreateSubject)
			subjects.GET("/:code", h.GetSubject)
			subjects.PUT("/:code", h.UpdateSubject)
			subjects.DELETE("/:code", h.DeleteSubject)
			subjects.POST("/:code/deactivate", h.DeactivateSubject)
		}
		api.GET("/subject-usages", h.ListUsages)
		api.PUT("/subject-usages/:usage", h.SetUsage)
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
