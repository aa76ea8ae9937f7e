package form

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paysync/internal/payment"
)

func TestRender(t *testing.T) {
	r := NewRenderer()
	var buf bytes.Buffer

	err := r.Render(&buf, &payment.CheckoutForm{
		Action: "https://shop.example.com/checkout",
		Fields: map[string]string{
			"cart_number": "CART-1",
			"amount":      "1999",
		},
	}, false)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `action="https://shop.example.com/checkout"`)
	assert.Contains(t, out, `name="amount" value="1999"`)
	assert.Contains(t, out, `name="cart_number" value="CART-1"`)
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, `class="error"`)
	assert.Less(t, strings.Index(out, `name="amount"`), strings.Index(out, `name="cart_number"`))
}

func TestRender_FailureAutoSubmits(t *testing.T) {
	r := NewRenderer()
	var buf bytes.Buffer

	fields := map[string]string{"cart_number": "CART-1"}
	for k, v := range payment.FailureFields(&payment.ValidationFailure{
		ChargeID: "ch_1",
		Code:     "card_declined",
		Message:  `Declined <img src=x onerror="alert(1)"> card`,
	}) {
		fields[k] = v
	}

	require.NoError(t, r.Render(&buf, &payment.CheckoutForm{Action: "/checkout", Fields: fields}, true))

	out := buf.String()
	assert.Contains(t, out, `document.getElementById("payment-form").submit()`)
	assert.Contains(t, out, `name="error_code" value="card_declined"`)
	assert.Contains(t, out, `name="error_charge_id" value="ch_1"`)
	assert.Contains(t, out, `<p class="error">Declined  card</p>`)
	assert.NotContains(t, out, "onerror")
}

func TestRender_Nil(t *testing.T) {
	assert.Error(t, NewRenderer().Render(&bytes.Buffer{}, nil, false))
}
