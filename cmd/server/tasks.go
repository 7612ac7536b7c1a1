package main

import (
	"context"
	"fmt"

	"github.com/DT191220/YDJX-sub000/internal/repository"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// monthTask 按月执行的批处理子命令
func monthTask(use, short string, run func(ctx context.Context, a *app, month string) (int, error)) *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			n, err := run(cmd.Context(), a, month)
			if err != nil {
				return err
			}
			a.log.Info(short+"完成", zap.String("month", month), zap.Int("count", n))
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d\n", short, month, n)
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "月份 YYYY-MM")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}

func newSalaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "salary",
		Short: "教练工资",
	}
	cmd.AddCommand(
		monthTask("generate", "生成工资草稿", func(ctx context.Context, a *app, month string) (int, error) {
			return a.svc.Salary.Generate(ctx, month)
		}),
		monthTask("refresh", "重算工资", func(ctx context.Context, a *app, month string) (int, error) {
			return a.svc.Salary.Refresh(ctx, month)
		}),
	)
	return cmd
}

func newExpenseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expense",
		Short: "运营费用",
	}
	cmd.AddCommand(
		monthTask("generate", "生成待付费用", func(ctx context.Context, a *app, month string) (int, error) {
			return a.svc.Expense.Generate(ctx, month)
		}),
	)
	return cmd
}

func newOutboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "账务事件消息",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reset-failed",
		Short: "把投递失败的消息重新放回待发送",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			n, err := repository.NewOutboxRepository(a.db).ResetFailed(cmd.Context())
			if err != nil {
				return err
			}
			a.log.Info("失败消息已重置", zap.Int64("count", n))
			fmt.Fprintf(cmd.OutOrStdout(), "reset %d messages\n", n)
			return nil
		},
	})
	return cmd
}
