package payments

import (
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Settlement is how much of an order's total the recorded payments cover.
type Settlement struct {
	TotalPaid        types.Money `json:"total_paid"`
	TotalOutstanding types.Money `json:"total_outstanding"`
	Paid             bool        `json:"paid"`
}

// Settle sums payments against total. Paid counts successful payments only;
// outstanding subtracts everything not failed, so pending cheques are not
// asked for twice. Overpayment counts as paid.
func Settle(total types.Money, payments []models.Payment) (Settlement, error) {
	paid := types.ZeroMoney(total.Currency)
	committed := types.ZeroMoney(total.Currency)
	for i := range payments {
		p := &payments[i]
		var err error
		if p.Status == enums.PaymentOutcomeSuccess {
			if paid, err = paid.Add(p.Money()); err != nil {
				return Settlement{}, err
			}
		}
		if p.Status != enums.PaymentOutcomeFailure {
			if committed, err = committed.Add(p.Money()); err != nil {
				return Settlement{}, err
			}
		}
	}
	outstanding, err := total.Sub(committed)
	if err != nil {
		return Settlement{}, err
	}
	if outstanding.IsNegative() {
		outstanding = types.ZeroMoney(total.Currency)
	}
	return Settlement{
		TotalPaid:        paid,
		TotalOutstanding: outstanding,
		Paid:             paid.Cmp(total) >= 0,
	}, nil
}

// nextState applies a settlement to the order's statuses. Paid never reverts,
// and cancelled or dispatched orders keep their status.
func nextState(order *models.Order, s Settlement) (enums.OrderStatus, enums.PaymentStatus) {
	status, payment := order.Status, order.PaymentStatus
	if order.IsPaid() || s.Paid {
		payment = enums.PaymentStatusPaid
	}
	if status.IsTerminal() {
		return status, payment
	}
	if payment == enums.PaymentStatusPaid {
		return enums.OrderStatusProcessing, payment
	}
	return enums.OrderStatusPending, enums.PaymentStatusUnpaid
}
