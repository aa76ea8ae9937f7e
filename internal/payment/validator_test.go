package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paysync/internal/models"
)

func allChecks() ValidationOptions {
	return ValidationOptions{
		CVC:                  true,
		Address:              true,
		AddressPropertyAlias: "street",
		ZipCode:              true,
		ZipCodePropertyAlias: "zip",
		Country:              true,
	}
}

func orderWithAddress() *models.Order {
	o := testOrder()
	o.SetProperty("street", "1 Main St")
	o.SetProperty("zip", "10001")
	return o
}

func addressedCharge() *Charge {
	c := paidCharge()
	c.AddressLine1 = "1 Main St"
	c.PostalCode = "10001"
	c.CardCountry = "us"
	return c
}

func TestValidateCharge_Passes(t *testing.T) {
	assert.Nil(t, ValidateCharge(orderWithAddress(), addressedCharge(), allChecks(), "US"))
}

func TestValidateCharge_ChecksDisabled(t *testing.T) {
	c := paidCharge()
	c.Checks.CVC = CheckFail
	c.CardCountry = "FR"
	assert.Nil(t, ValidateCharge(testOrder(), c, ValidationOptions{}, "US"))
}

func TestValidateCharge_Failures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.Order, *Charge)
		code   string
	}{
		{"cvc", func(_ *models.Order, c *Charge) { c.Checks.CVC = CheckFail }, CodeCVCCheckFailed},
		{"address missing", func(o *models.Order, _ *Charge) { delete(o.Properties, "street") }, CodeAddressCheckFailed},
		{"address differs", func(_ *models.Order, c *Charge) { c.AddressLine1 = "2 Main St" }, CodeAddressCheckFailed},
		{"address check failed", func(_ *models.Order, c *Charge) { c.Checks.AddressLine1 = CheckFail }, CodeAddressCheckFailed},
		{"zip missing", func(o *models.Order, _ *Charge) { o.SetProperty("zip", " ") }, CodeZipCheckFailed},
		{"zip differs", func(_ *models.Order, c *Charge) { c.PostalCode = "10002" }, CodeZipCheckFailed},
		{"zip check failed", func(_ *models.Order, c *Charge) { c.Checks.PostalCode = CheckFail }, CodeZipCheckFailed},
		{"country", func(_ *models.Order, c *Charge) { c.CardCountry = "CA" }, CodeCountryCheckFailed},
		{"amount missing", func(_ *models.Order, c *Charge) { c.Amount = 0 }, CodeAmountMismatch},
		{"not paid", func(_ *models.Order, c *Charge) { c.Paid = false }, CodeChargeNotPaid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o, c := orderWithAddress(), addressedCharge()
			tc.mutate(o, c)
			f := ValidateCharge(o, c, allChecks(), "US")
			require.NotNil(t, f)
			assert.Equal(t, tc.code, f.Code)
			assert.Equal(t, "ch_1", f.ChargeID)
			assert.NotEmpty(t, f.Message)
		})
	}
}

func TestValidateCharge_FirstFailureWins(t *testing.T) {
	c := paidCharge()
	c.Checks.CVC = CheckFail
	c.Amount = 1

	f := ValidateCharge(testOrder(), c, ValidationOptions{CVC: true}, "")
	require.NotNil(t, f)
	assert.Equal(t, CodeCVCCheckFailed, f.Code)
}

func TestValidateCharge_AmountBoundary(t *testing.T) {
	for _, amount := range []int64{1998, 2000} {
		c := paidCharge()
		c.Amount = amount
		f := ValidateCharge(testOrder(), c, ValidationOptions{}, "")
		require.NotNil(t, f, "amount %d", amount)
		assert.Equal(t, CodeAmountMismatch, f.Code)
	}
	assert.Nil(t, ValidateCharge(testOrder(), paidCharge(), ValidationOptions{}, ""))
}

func TestValidateCapture(t *testing.T) {
	captured := paidCharge()
	captured.Captured = true
	assert.Nil(t, ValidateCapture(captured))

	f := ValidateCapture(paidCharge())
	require.NotNil(t, f)
	assert.Equal(t, CodeCaptureFailed, f.Code)
	assert.Equal(t, "ch_1", f.ChargeID)

	f = ValidateCapture(nil)
	require.NotNil(t, f)
	assert.Equal(t, CodeCaptureFailed, f.Code)
}
