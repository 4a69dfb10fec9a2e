package notifier

import (
	"fmt"
	"strings"

	"github.com/joao-fontenele/quickserve/internal/domain"
)

// FormatPhoneNumber keeps the digits of a phone number and prefixes the
// country code to bare 10-digit numbers.
func FormatPhoneNumber(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 10 && !strings.HasPrefix(digits, "1") {
		return "1" + digits
	}
	return digits
}

// statusMessage returns the text sent for an order event, or false when the
// event is not one customers hear about.
func statusMessage(event domain.Event) (string, bool) {
	switch ev := event.(type) {
	case domain.OrderCreated:
		o := ev.Order
		return fmt.Sprintf("Order %s received for table %d. Total %s. Status: %s.",
			o.Number, o.TableNumber, formatAmount(o.TotalAmount), o.Status), true
	case domain.OrderUpdated:
		o := ev.Order
		switch o.Status {
		case domain.StatusPrepared:
			return fmt.Sprintf("Order %s is ready and will be served shortly.", o.Number), true
		case domain.StatusDelivered:
			return fmt.Sprintf("Order %s has been served. Enjoy your meal!", o.Number), true
		case domain.StatusCancelled:
			return fmt.Sprintf("Order %s has been cancelled.", o.Number), true
		}
	}
	return "", false
}

func paymentMessage(order domain.Order) string {
	return fmt.Sprintf("Payment of %s received for order %s (%s).",
		formatAmount(order.TotalAmount), order.Number, order.PaymentMethod)
}

// formatAmount renders an amount in minor units as 6.47.
func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
