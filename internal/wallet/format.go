package wallet

import "fmt"

// FormatKobo renders a kobo amount as a naira string, e.g. 50000 -> "₦500.00".
func FormatKobo(kobo int64) string {
	sign := ""
	if kobo < 0 {
		sign = "-"
		kobo = -kobo
	}
	return fmt.Sprintf("%s₦%d.%02d", sign, kobo/100, kobo%100)
}
