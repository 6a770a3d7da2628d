package notionsync

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/subwatch/internal/domain"
)

// SubscriptionToNotionProperties converts a detected subscription into the
// properties of a page in the Subscriptions database. The Subscription ID
// property is the idempotency key the sync matches on.
func SubscriptionToNotionProperties(sub domain.Subscription) notionapi.Properties {
	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: sub.Name,
					},
				},
			},
		},
		"Subscription ID": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: sub.ID,
					},
				},
			},
		},
		"Amount": notionapi.NumberProperty{
			Number: sub.Amount.InexactFloat64(),
		},
		"Frequency": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(sub.Frequency),
			},
		},
		"Status": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(sub.Status),
			},
		},
		"Confidence": notionapi.NumberProperty{
			Number: sub.Confidence,
		},
	}

	if !sub.LastPaymentDate.IsZero() {
		props["Last Payment"] = dateProperty(sub.LastPaymentDate)
	}
	if !sub.NextPaymentDate.IsZero() {
		props["Next Payment"] = dateProperty(sub.NextPaymentDate)
	}

	return props
}

// extractSubscriptionID pulls the Subscription ID property off an existing
// Notion page, or "" when the page predates the property.
func extractSubscriptionID(page notionapi.Page) string {
	prop, ok := page.Properties["Subscription ID"]
	if !ok {
		return ""
	}
	rich, ok := prop.(*notionapi.RichTextProperty)
	if !ok || len(rich.RichText) == 0 {
		return ""
	}
	return rich.RichText[0].PlainText
}

func dateProperty(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
	return notionapi.DateProperty{
		Date: &notionapi.DateObject{
			Start: &d,
		},
	}
}
