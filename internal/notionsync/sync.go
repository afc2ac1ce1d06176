// Package notionsync mirrors expenses into a Notion database.
package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/gastos/internal/domain"
	"github.com/dvloznov/gastos/internal/logger"
	"github.com/jomei/notionapi"
)

// BatchSize is the number of expenses processed between progress logs.
const BatchSize = 100

// Result counts what a sync did.
type Result struct {
	Created  int
	Updated  int
	Archived int
	Failed   int
}

// SyncExpenses mirrors the owner's expenses between start and end into the
// Notion database. Pages are matched by their Expense ID property, so reruns
// update pages instead of duplicating them. Pages in the range whose expense
// no longer exists are archived.
func SyncExpenses(ctx context.Context, store ExpenseLister, notionClient NotionService, notionDBID, ownerID string, start, end time.Time, dryRun bool) (Result, error) {
	log := logger.FromContext(ctx)
	var res Result

	log.Info().
		Str("owner_id", ownerID).
		Time("start_date", start).
		Time("end_date", end).
		Bool("dry_run", dryRun).
		Msg("Starting expense sync to Notion")

	expenses, err := store.List(ctx, domain.NewFilter(ownerID, &start, &end, domain.CategoryAll))
	if err != nil {
		return res, fmt.Errorf("SyncExpenses: listing expenses: %w", err)
	}

	pages, err := queryAllNotionPages(ctx, notionClient, notionDBID, ownerFilter(ownerID, start, end))
	if err != nil {
		return res, fmt.Errorf("SyncExpenses: querying Notion pages: %w", err)
	}

	log.Info().
		Int("expense_count", len(expenses)).
		Int("notion_page_count", len(pages)).
		Msg("Loaded expenses and existing Notion pages")

	valid := make(map[string]bool, len(expenses))
	for _, e := range expenses {
		valid[e.ID] = true
	}

	existing := make(map[string]string, len(pages))
	for _, page := range pages {
		id := extractExpenseID(page)
		if id != "" && valid[id] {
			existing[id] = string(page.ID)
			continue
		}

		if dryRun {
			log.Info().Str("expense_id", id).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive stale Notion page")
			res.Archived++
			continue
		}
		if err := notionClient.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
			res.Failed++
			continue
		}
		res.Archived++
	}

	for i, e := range expenses {
		if i > 0 && i%BatchSize == 0 {
			log.Info().Int("processed", i).Int("total", len(expenses)).Msg("Sync progress")
		}

		pageID, found := existing[e.ID]
		if dryRun {
			if found {
				res.Updated++
			} else {
				res.Created++
			}
			continue
		}

		props := ExpenseToNotionProperties(e)
		if found {
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("expense_id", e.ID).Str("page_id", pageID).Msg("Failed to update Notion page")
				res.Failed++
				continue
			}
			res.Updated++
			continue
		}

		page, err := notionClient.CreatePage(ctx, notionDBID, props)
		if err != nil {
			log.Warn().Err(err).Str("expense_id", e.ID).Msg("Failed to create Notion page")
			res.Failed++
			continue
		}
		log.Debug().Str("expense_id", e.ID).Str("page_id", string(page.ID)).Msg("Created Notion page")
		res.Created++
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("archived", res.Archived).
		Int("failed", res.Failed).
		Msg("Expense sync completed")

	return res, nil
}

// ownerFilter selects the owner's pages dated within [start, end].
func ownerFilter(ownerID string, start, end time.Time) notionapi.Filter {
	from := notionapi.Date(start)
	to := notionapi.Date(end)
	return notionapi.AndCompoundFilter{
		notionapi.PropertyFilter{
			Property: propOwner,
			RichText: &notionapi.TextFilterCondition{Equals: ownerID},
		},
		notionapi.PropertyFilter{
			Property: propDate,
			Date:     &notionapi.DateFilterCondition{OnOrAfter: &from, OnOrBefore: &to},
		},
	}
}

// queryAllNotionPages queries all pages matching filter, following
// pagination.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string, filter notionapi.Filter) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			Filter:   filter,
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
