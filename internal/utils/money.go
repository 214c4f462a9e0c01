package utils

import (
	"fmt"
)

// FormatKobo renders an amount held in kobo as a naira string for
// user-facing messages. Ledger arithmetic never touches this; balances stay
// integral end to end.
func FormatKobo(kobo int64) string {
	sign := ""
	if kobo < 0 {
		sign = "-"
		kobo = -kobo
	}
	return fmt.Sprintf("%s₦%d.%02d", sign, kobo/100, kobo%100)
}
