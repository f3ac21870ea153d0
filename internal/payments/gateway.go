package payments

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/square"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// CaptureRequest asks a gateway to take payment for an order total.
type CaptureRequest struct {
	OrderID        uuid.UUID
	Amount         types.Money
	SourceID       string
	PayerEmail     string
	IdempotencyKey string
}

// CaptureResult is what the gateway reported. Status is mapped onto the
// order engine's outcomes.
type CaptureResult struct {
	Status           enums.PaymentOutcome
	Amount           types.Money
	GatewayReference string
	PayerReference   string
	Message          string
}

// Gateway takes payment for one method. Communication failures are returned
// as settlement errors.
type Gateway interface {
	Method() enums.PaymentMethod
	Capture(ctx context.Context, req CaptureRequest) (CaptureResult, error)
}

type GatewayRegistry struct {
	gateways map[enums.PaymentMethod]Gateway
}

func NewGatewayRegistry(gateways ...Gateway) *GatewayRegistry {
	r := &GatewayRegistry{gateways: make(map[enums.PaymentMethod]Gateway, len(gateways))}
	for _, g := range gateways {
		if g != nil {
			r.gateways[g.Method()] = g
		}
	}
	return r
}

func (r *GatewayRegistry) Lookup(method enums.PaymentMethod) (Gateway, bool) {
	g, ok := r.gateways[method]
	return g, ok
}

func (r *GatewayRegistry) Methods() []enums.PaymentMethod {
	out := make([]enums.PaymentMethod, 0, len(r.gateways))
	for m := range r.gateways {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ChequeGateway records a manual payment promise. The merchant marks it
// successful through the admin API once the cheque clears.
type ChequeGateway struct{}

func (ChequeGateway) Method() enums.PaymentMethod { return enums.PaymentMethodCheque }

func (ChequeGateway) Capture(_ context.Context, req CaptureRequest) (CaptureResult, error) {
	return CaptureResult{
		Status:           enums.PaymentOutcomePending,
		Amount:           req.Amount,
		GatewayReference: "cheque-" + req.OrderID.String(),
		PayerReference:   req.PayerEmail,
		Message:          "awaiting cheque",
	}, nil
}

type squarePayments interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
}

// SquareGateway charges a card token through Square.
type SquareGateway struct {
	client squarePayments
}

func NewSquareGateway(client squarePayments) *SquareGateway {
	return &SquareGateway{client: client}
}

func (g *SquareGateway) Method() enums.PaymentMethod { return enums.PaymentMethodSquare }

func (g *SquareGateway) Capture(ctx context.Context, req CaptureRequest) (CaptureResult, error) {
	if strings.TrimSpace(req.SourceID) == "" {
		return CaptureResult{}, pkgerrors.New(pkgerrors.CodeValidation, "payment source required")
	}
	payment, err := g.client.CreatePayment(ctx, square.PaymentCreateParams{
		Amount:         req.Amount,
		SourceID:       req.SourceID,
		ReferenceID:    req.OrderID.String(),
		Note:           fmt.Sprintf("Order %s", req.OrderID),
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeSettlement {
			return CaptureResult{}, err
		}
		return CaptureResult{}, pkgerrors.Wrap(pkgerrors.CodeSettlement, err, "square capture failed")
	}
	return resultFromSquare(payment, req.Amount), nil
}

func resultFromSquare(payment *sq.Payment, requested types.Money) CaptureResult {
	result := CaptureResult{
		Status:           OutcomeForSquareStatus(deref(payment.GetStatus())),
		Amount:           requested,
		GatewayReference: deref(payment.GetID()),
		PayerReference:   deref(payment.GetBuyerEmailAddress()),
		Message:          deref(payment.GetStatus()),
	}
	if money := payment.GetAmountMoney(); money != nil && money.GetAmount() != nil && money.GetCurrency() != nil {
		currency := enums.Currency(*money.GetCurrency())
		result.Amount = square.FromMinorUnits(*money.GetAmount(), currency)
	}
	return result
}

// OutcomeForSquareStatus maps a Square payment status onto a payment outcome.
func OutcomeForSquareStatus(status string) enums.PaymentOutcome {
	switch strings.ToUpper(status) {
	case square.StatusCompleted:
		return enums.PaymentOutcomeSuccess
	case square.StatusFailed, square.StatusCanceled:
		return enums.PaymentOutcomeFailure
	default:
		return enums.PaymentOutcomePending
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
