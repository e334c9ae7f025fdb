package trade

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eventdesk/desk-engine/internal/kalshi"
	"github.com/eventdesk/desk-engine/internal/model"
)

// fillPriceScale is the precision of a fill price derived from fill cost.
const fillPriceScale = 4

// Classify fills res from the exchange's answer to an order submission.
//
//	any fill, or status executed  → executed
//	status canceled, no fill      → canceled
//	error, or any other status    → rejected
//
// A market order that comes back resting never traded, so it is rejected.
func Classify(res *model.OrderResult, o *kalshi.Order, err error) {
	if err != nil {
		res.Outcome = model.OutcomeRejected
		res.Error = err.Error()
		return
	}
	if o == nil {
		res.Outcome = model.OutcomeRejected
		res.Error = "no response from exchange"
		return
	}

	res.OrderID = o.OrderID
	res.FilledAt = o.LastUpdateTime

	var fillCount int64
	if o.FillCount != nil {
		fillCount = *o.FillCount
	}
	takerCost := kalshi.Value(o.TakerFillCostDollars)
	makerCost := kalshi.Value(o.MakerFillCostDollars)
	filled := fillCount > 0 || takerCost.IsPositive() || makerCost.IsPositive()

	switch {
	case filled || o.Status == kalshi.OrderStatusExecuted:
		res.Outcome = model.OutcomeExecuted
		if fillCount == 0 {
			fillCount = res.Quantity
		}
		res.FillCount = fillCount
		res.FillCost = takerCost.Add(makerCost)
		res.Fees = kalshi.Value(o.TakerFeesDollars).Add(kalshi.Value(o.MakerFeesDollars))
		if res.FillCost.IsPositive() {
			res.FillPrice = res.FillCost.Div(decimal.NewFromInt(fillCount)).Round(fillPriceScale)
		} else if p, ok := o.SidePrice(); ok {
			res.FillPrice = p
		}
		res.ExecutionType = model.ExecutionMaker
		if takerCost.IsPositive() {
			res.ExecutionType = model.ExecutionTaker
		}

	case o.Status == kalshi.OrderStatusCanceled:
		res.Outcome = model.OutcomeCanceled
		res.Error = "Canceled"

	default:
		res.Outcome = model.OutcomeRejected
		res.Error = fmt.Sprintf("order not filled (status=%s)", o.Status)
	}
}

// Describe renders a classified result as an event log line.
func Describe(res *model.OrderResult) string {
	if res.Outcome != model.OutcomeExecuted {
		return fmt.Sprintf("Failed to place %s %s x%d (%s): %s",
			res.Action, res.Side, res.Quantity, res.Ticker, res.Error)
	}

	qty := fmt.Sprintf("x%d", res.FillCount)
	if res.FillCount < res.Quantity {
		qty = fmt.Sprintf("x%d of %d", res.FillCount, res.Quantity)
	}
	msg := fmt.Sprintf("Executed %s %s %s @ $%s per contract (fees: $%s) %s (%s)",
		res.ExecutionType, res.Action, res.Side,
		res.FillPrice.StringFixed(fillPriceScale), res.Fees.StringFixed(4), qty, res.Ticker)
	if res.FilledAt != "" {
		msg += ", filled at " + res.FilledAt
	}
	return msg
}
