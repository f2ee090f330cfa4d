package email

import (
	"fmt"
	"html"
	"strings"
)

// RemovedItem is a cart line shown in the removal notice
type RemovedItem struct {
	ProductID     string
	VariantWeight string
	Quantity      int
	Reason        string
}

var reasonText = map[string]string{
	"product_not_found":   "no longer sold",
	"product_unavailable": "currently unavailable",
	"variant_not_found":   "size no longer offered",
	"out_of_stock":        "out of stock",
	"lookup_failed":       "could not be checked, please add it again",
}

// DescribeReason returns the customer-facing text of a removal reason
func DescribeReason(reason string) string {
	if text, ok := reasonText[reason]; ok {
		return text
	}
	return "unavailable"
}

// BuildItemsRemovedBody builds the HTML body of the removal notice
func BuildItemsRemovedBody(items []RemovedItem) string {
	var rows strings.Builder
	for _, item := range items {
		fmt.Fprintf(&rows,
			`<tr>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s</td>
			</tr>`,
			html.EscapeString(item.ProductID),
			html.EscapeString(item.VariantWeight),
			item.Quantity,
			DescribeReason(item.Reason),
		)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #b5651d; padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">Your cart changed</h1>
	</div>

	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0;">While checking your cart we had to remove these items:</p>

		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left;">Product</th>
					<th style="padding: 12px; text-align: center;">Size</th>
					<th style="padding: 12px; text-align: center;">Qty</th>
					<th style="padding: 12px; text-align: left;">Reason</th>
				</tr>
			</thead>
			<tbody>
				%s
			</tbody>
		</table>

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			This email was sent automatically.
		</p>
	</div>
</body>
</html>`, rows.String())
}
