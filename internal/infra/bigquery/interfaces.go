package bigquery

import (
	"github.com/dvloznov/subwatch/internal/detect"
	"github.com/dvloznov/subwatch/internal/forecast"
	"github.com/dvloznov/subwatch/internal/ingest"
	"github.com/dvloznov/subwatch/internal/notify"
)

// Compile-time checks that Repository satisfies every consumer-side store
// interface in the engine.
var (
	_ detect.TransactionSource    = (*Repository)(nil)
	_ detect.SubscriptionStore    = (*Repository)(nil)
	_ forecast.TransactionSource  = (*Repository)(nil)
	_ forecast.SubscriptionSource = (*Repository)(nil)
	_ ingest.TransactionStore     = (*Repository)(nil)
	_ notify.SubscriptionSource   = (*Repository)(nil)
	_ notify.NotificationStore    = (*Repository)(nil)
	_ notify.UserSource           = (*Repository)(nil)
)
