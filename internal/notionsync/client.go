package notionsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dvloznov/gastos/internal/domain"
	"github.com/jomei/notionapi"
)

const (
	maxAttempts    = 3
	rateLimitDelay = time.Second
)

// NotionClient implements NotionService with the Notion SDK. Calls rejected
// with 429 are retried after a growing pause.
type NotionClient struct {
	client *notionapi.Client
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewNotionClient creates a client authenticated with an integration token.
func NewNotionClient(token string) *NotionClient {
	return &NotionClient{
		client: notionapi.NewClient(notionapi.Token(token)),
		sleep:  sleepContext,
	}
}

func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	}

	var page *notionapi.Page
	err := n.do(ctx, "CreatePage", func() (err error) {
		page, err = n.client.Page.Create(ctx, req)
		return err
	})
	return page, err
}

func (n *NotionClient) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageUpdateRequest{Properties: properties}

	var page *notionapi.Page
	err := n.do(ctx, "UpdatePage", func() (err error) {
		page, err = n.client.Page.Update(ctx, notionapi.PageID(pageID), req)
		return err
	})
	return page, err
}

func (n *NotionClient) QueryDatabase(ctx context.Context, databaseID string, query *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	var resp *notionapi.DatabaseQueryResponse
	err := n.do(ctx, "QueryDatabase", func() (err error) {
		resp, err = n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), query)
		return err
	})
	return resp, err
}

// ArchivePage moves a page to the trash. Notion has no hard delete.
func (n *NotionClient) ArchivePage(ctx context.Context, pageID string) error {
	req := &notionapi.PageUpdateRequest{Archived: true}
	return n.do(ctx, "ArchivePage", func() error {
		_, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), req)
		return err
	})
}

func (n *NotionClient) do(ctx context.Context, op string, call func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = call(); err == nil {
			return nil
		}
		if !rateLimited(err) || attempt == maxAttempts {
			break
		}
		if serr := n.sleep(ctx, time.Duration(attempt)*rateLimitDelay); serr != nil {
			err = serr
			break
		}
	}
	return domain.Upstream("notion", fmt.Errorf("%s: %w", op, err))
}

func rateLimited(err error) bool {
	var apiErr *notionapi.Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ NotionService = (*NotionClient)(nil)
