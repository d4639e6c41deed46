package usecase

import (
	"context"
	"time"

	"checkout/internal/domain/model"
	repo "checkout/internal/repository"

	"github.com/shopspring/decimal"
)

type AnalyticsRange struct {
	From *time.Time
	To   *time.Time
}

type AnalyticsOutput struct {
	TotalRevenue            int64            `json:"total_revenue"`
	TodayRevenue            int64            `json:"today_revenue"`
	ThisMonthRevenue        int64            `json:"this_month_revenue"`
	ThisYearRevenue         int64            `json:"this_year_revenue"`
	TotalTransactions       int64            `json:"total_transactions"`
	SuccessfulTransactions  int64            `json:"successful_transactions"`
	FailedTransactions      int64            `json:"failed_transactions"`
	PendingTransactions     int64            `json:"pending_transactions"`
	RefundedTransactions    int64            `json:"refunded_transactions"`
	TotalRefundedAmount     int64            `json:"total_refunded_amount"`
	AverageTransactionValue string           `json:"average_transaction_value"`
	DailyRevenue            map[string]int64 `json:"daily_revenue"`
	PaymentMethodStats      map[string]int64 `json:"payment_method_stats"`
	PaymentMethodRevenue    map[string]int64 `json:"payment_method_revenue"`
}

// 売上はSUCCESSの決済だけ。返金の数字は台帳（成功した返金）から出す
func (u *PaymentUsecase) Analytics(ctx context.Context, rg AnalyticsRange) (AnalyticsOutput, error) {
	if rg.From != nil && rg.To != nil && rg.To.Before(*rg.From) {
		return AnalyticsOutput{}, errValidation("to must not be before from")
	}

	var (
		payments       []model.Payment
		refundedSum    int64
		refundedCount  int64
		refundedFilter = repo.TransactionFilter{
			Types:    model.RefundTransactionTypes,
			Statuses: []model.TransactionStatus{model.TransactionStatusSuccess},
			From:     rg.From,
			To:       rg.To,
		}
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		payments, err = r.Payments().ListForAnalytics(ctx, rg.From, rg.To)
		if err != nil {
			return errDB()
		}
		refundedSum, err = r.Transactions().Sum(ctx, refundedFilter)
		if err != nil {
			return errDB()
		}
		refundedCount, err = r.Transactions().Count(ctx, refundedFilter)
		if err != nil {
			return errDB()
		}
		return nil
	})
	if err != nil {
		return AnalyticsOutput{}, err
	}

	out := summarizePayments(payments, u.now())
	out.RefundedTransactions = refundedCount
	out.TotalRefundedAmount = refundedSum
	return out, nil
}

func summarizePayments(payments []model.Payment, now time.Time) AnalyticsOutput {
	loc := now.Location()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	startOfYear := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc)

	out := AnalyticsOutput{
		DailyRevenue:         map[string]int64{},
		PaymentMethodStats:   map[string]int64{},
		PaymentMethodRevenue: map[string]int64{},
	}

	for _, p := range payments {
		out.TotalTransactions++
		out.PaymentMethodStats[string(p.Method)]++

		switch p.Status {
		case model.PaymentStatusSuccess:
			out.SuccessfulTransactions++
		case model.PaymentStatusFailed:
			out.FailedTransactions++
		case model.PaymentStatusPending:
			out.PendingTransactions++
		}

		if p.Status != model.PaymentStatusSuccess {
			continue
		}

		created := p.CreatedAt.In(loc)
		out.TotalRevenue += p.Amount
		out.PaymentMethodRevenue[string(p.Method)] += p.Amount
		out.DailyRevenue[created.Format("2006-01-02")] += p.Amount
		if !created.Before(startOfDay) {
			out.TodayRevenue += p.Amount
		}
		if !created.Before(startOfMonth) {
			out.ThisMonthRevenue += p.Amount
		}
		if !created.Before(startOfYear) {
			out.ThisYearRevenue += p.Amount
		}
	}

	avg := decimal.Zero
	if out.SuccessfulTransactions > 0 {
		avg = decimal.NewFromInt(out.TotalRevenue).Div(decimal.NewFromInt(out.SuccessfulTransactions))
	}
	out.AverageTransactionValue = avg.StringFixed(2)
	return out
}
