package fee

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, v string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(v)
	require.NoError(t, err)
	return d
}

func TestComputeBookingFees(t *testing.T) {
	tests := []struct {
		name  string
		price string
		fee   string
		total string
	}{
		{name: "round hundred", price: "100.00", fee: "15.00", total: "115.00"},
		{name: "zero price", price: "0", fee: "0.00", total: "0.00"},
		{name: "half cent rounds up", price: "10.10", fee: "1.52", total: "11.62"},
		{name: "below half cent rounds down", price: "1.01", fee: "0.15", total: "1.16"},
		{name: "fractional input", price: "49.99", fee: "7.50", total: "57.49"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fees, err := ComputeBookingFees(dec(t, tt.price))
			require.NoError(t, err)
			assert.True(t, fees.ServiceFee.Equal(dec(t, tt.fee)), "fee %s", fees.ServiceFee)
			assert.True(t, fees.TotalPrice.Equal(dec(t, tt.total)), "total %s", fees.TotalPrice)
			assert.True(t, fees.TotalPrice.Equal(fees.ServicePrice.Add(fees.ServiceFee)))
		})
	}
}

func TestComputeBookingFeesRejectsNegative(t *testing.T) {
	_, err := ComputeBookingFees(dec(t, "-1"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestComputeNoShowFee(t *testing.T) {
	got, err := ComputeNoShowFee(dec(t, "115.00"), 50)
	require.NoError(t, err)
	assert.True(t, got.Equal(dec(t, "57.50")), "got %s", got)

	got, err = ComputeNoShowFee(dec(t, "100.00"), 50)
	require.NoError(t, err)
	assert.True(t, got.Equal(dec(t, "50.00")))

	got, err = ComputeNoShowFee(dec(t, "33.33"), 33)
	require.NoError(t, err)
	assert.True(t, got.Equal(dec(t, "11.00")), "got %s", got)

	got, err = ComputeNoShowFee(dec(t, "80"), 0)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestComputeNoShowFeeRejectsPercentOutOfRange(t *testing.T) {
	_, err := ComputeNoShowFee(dec(t, "10"), 101)
	assert.ErrorIs(t, err, ErrInvalidPercent)
	_, err = ComputeNoShowFee(dec(t, "10"), -1)
	assert.ErrorIs(t, err, ErrInvalidPercent)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(5750), MinorUnits(dec(t, "57.50")))
	assert.True(t, FromMinorUnits(11500).Equal(dec(t, "115.00")))
}
