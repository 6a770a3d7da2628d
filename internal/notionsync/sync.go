package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/subwatch/internal/domain"
	"github.com/dvloznov/subwatch/internal/logger"
)

// SubscriptionSource provides the subscriptions to mirror into Notion.
type SubscriptionSource interface {
	SubscriptionsByUser(ctx context.Context, userID string) ([]domain.Subscription, error)
}

// SyncSubscriptions mirrors a user's subscriptions into a Notion database.
// The Subscription ID property tracks identity, so re-running the sync
// updates pages in place instead of duplicating them; pages whose
// subscription no longer exists are archived.
func SyncSubscriptions(ctx context.Context, source SubscriptionSource, notionClient NotionService, notionDBID, userID string, dryRun bool) error {
	log := logger.ForUser(logger.FromContext(ctx), userID)

	subs, err := source.SubscriptionsByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("SyncSubscriptions: loading subscriptions: %w", err)
	}
	log.Info().Int("subscription_count", len(subs)).Bool("dry_run", dryRun).Msg("Starting subscription sync to Notion")

	pages, err := queryAllPages(ctx, notionClient, notionDBID)
	if err != nil {
		return fmt.Errorf("SyncSubscriptions: querying Notion pages: %w", err)
	}

	pageBySubID := make(map[string]notionapi.Page, len(pages))
	for _, page := range pages {
		if id := extractSubscriptionID(page); id != "" {
			pageBySubID[id] = page
		}
	}

	valid := make(map[string]bool, len(subs))
	var created, updated, archived int

	for _, sub := range subs {
		valid[sub.ID] = true
		props := SubscriptionToNotionProperties(sub)

		if page, exists := pageBySubID[sub.ID]; exists {
			if dryRun {
				log.Info().Str("subscription_id", sub.ID).Msg("[DRY RUN] Would update Notion page")
				updated++
				continue
			}
			if _, err := notionClient.UpdatePage(ctx, string(page.ID), props); err != nil {
				log.Warn().Err(err).Str("subscription_id", sub.ID).Msg("Failed to update Notion page")
				continue
			}
			updated++
		} else {
			if dryRun {
				log.Info().Str("subscription_id", sub.ID).Msg("[DRY RUN] Would create Notion page")
				created++
				continue
			}
			if _, err := notionClient.CreatePage(ctx, notionDBID, props); err != nil {
				log.Warn().Err(err).Str("subscription_id", sub.ID).Msg("Failed to create Notion page")
				continue
			}
			created++
		}
	}

	// Archive pages whose subscription disappeared (or that predate the
	// Subscription ID property).
	for _, page := range pages {
		subID := extractSubscriptionID(page)
		if subID != "" && valid[subID] {
			continue
		}
		if dryRun {
			log.Info().Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive stale Notion page")
			archived++
			continue
		}
		if err := notionClient.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
			continue
		}
		archived++
	}

	log.Info().
		Int("created", created).
		Int("updated", updated).
		Int("archived", archived).
		Msg("Subscription sync finished")
	return nil
}

// queryAllPages pages through the whole Notion database.
func queryAllPages(ctx context.Context, notionClient NotionService, notionDBID string) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	req := &notionapi.DatabaseQueryRequest{PageSize: 100}

	for {
		resp, err := notionClient.QueryDatabase(ctx, notionDBID, req)
		if err != nil {
			return nil, err
		}
		pages = append(pages, resp.Results...)

		if !resp.HasMore {
			return pages, nil
		}
		req.StartCursor = notionapi.Cursor(resp.NextCursor)
	}
}
