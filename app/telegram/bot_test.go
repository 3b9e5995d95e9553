package telegram

import "testing"

func TestFormatAmountRendersConfiguredCurrency(t *testing.T) {
	cases := []struct {
		cents    int64
		currency string
		expected string
	}{
		{1999, "USD", "$19.99"},
		{1999, "usd", "$19.99"},
		{500, "EUR", "€5.00"},
		{250, "GBP", "£2.50"},
		{1999, "PLN", "19.99 PLN"},
		{5, "chf", "0.05 CHF"},
		{0, "USD", "$0.00"},
	}

	for _, c := range cases {
		if got := formatAmount(c.cents, c.currency); got != c.expected {
			t.Fatalf("formatAmount(%d, %q) = %q, expected %q", c.cents, c.currency, got, c.expected)
		}
	}
}
