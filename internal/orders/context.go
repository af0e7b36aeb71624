package orders

import (
	"fmt"
	"strings"
)

// CurrencySymbol prefixes totals in prompt context.
const CurrencySymbol = "₹"

// FormatContext renders the order block placed ahead of knowledge context
// in the model prompt.
func FormatContext(v View) string {
	delivery := v.EstimatedDelivery
	if delivery == "" {
		delivery = "N/A"
	}
	var b strings.Builder
	b.WriteString("ORDER INFORMATION:\n")
	fmt.Fprintf(&b, "- Order ID: %s\n", v.OrderID)
	fmt.Fprintf(&b, "- Status: %s - %s\n", v.Status, v.StatusDescription)
	fmt.Fprintf(&b, "- Items: %d item(s)\n", v.ItemsCount)
	fmt.Fprintf(&b, "- Total: %s%.2f\n", CurrencySymbol, v.Total)
	fmt.Fprintf(&b, "- Estimated Delivery: %s\n", delivery)
	fmt.Fprintf(&b, "- Can Cancel: %s\n", yesNo(v.CanCancel))
	fmt.Fprintf(&b, "- Can Return: %s", yesNo(v.CanReturn))
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
