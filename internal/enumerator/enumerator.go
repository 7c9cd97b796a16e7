package enumerator

import (
	"context"

	"github.com/raysh454/rankdesk/internal/model"
)

type Enumerator interface {
	Enumerate(ctx context.Context, target string) ([]string, error)
}

// Page is one fetched URL handed to a Visitor. Response is nil when the
// fetch itself failed; Err then carries the cause.
type Page struct {
	URL      string
	Depth    int
	Response *model.Response
	Err      error
}

// Visitor receives pages in crawl order.
type Visitor func(Page)
