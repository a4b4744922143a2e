// Package fee derives booking and no-show fees from service prices.
//
// All arithmetic is fixed point. Results are rounded half-up to two decimal
// places at the point of computation and never re-rounded downstream.
package fee

import (
	"errors"

	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

// ServiceFeeRate is the platform fee charged on top of the service price.
var ServiceFeeRate = decimal.RequireFromString("0.15")

var (
	ErrInvalidAmount  = errors.New("invalid_amount")
	ErrInvalidPercent = errors.New("invalid_percent")
)

var hundred = decimal.NewFromInt(100)

// Fees is the price breakdown stored on a booking.
type Fees struct {
	ServicePrice decimal.Decimal `json:"service_price"`
	ServiceFee   decimal.Decimal `json:"service_fee"`
	TotalPrice   decimal.Decimal `json:"total_price"`
}

// ComputeBookingFees returns the platform fee and the total charged to the client.
func ComputeBookingFees(servicePrice decimal.Decimal) (Fees, error) {
	if servicePrice.IsNegative() {
		return Fees{}, ErrInvalidAmount
	}
	price := Round(servicePrice)
	serviceFee := Round(price.Mul(ServiceFeeRate))
	return Fees{
		ServicePrice: price,
		ServiceFee:   serviceFee,
		TotalPrice:   price.Add(serviceFee),
	}, nil
}

// ComputeNoShowFee returns percent% of the booking total.
func ComputeNoShowFee(totalPrice decimal.Decimal, percent int) (decimal.Decimal, error) {
	if totalPrice.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	if percent < 0 || percent > 100 {
		return decimal.Zero, ErrInvalidPercent
	}
	return Round(totalPrice.Mul(decimal.NewFromInt(int64(percent))).Div(hundred)), nil
}

// Round rounds half away from zero to cents.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(moneyPlaces)
}

// MinorUnits converts an amount to integer cents for processor calls.
func MinorUnits(amount decimal.Decimal) int64 {
	return Round(amount).Mul(hundred).IntPart()
}

// FromMinorUnits converts integer cents back to a decimal amount.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -moneyPlaces)
}
