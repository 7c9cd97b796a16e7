// Package webclient is the outbound HTTP layer shared by the audit providers,
// the managed-auth client and the crawler.
package webclient

import (
	"context"

	"github.com/raysh454/rankdesk/internal/model"
)

type WebClient interface {
	Do(ctx context.Context, req *model.Request) (*model.Response, error)
	Get(ctx context.Context, url string) (*model.Response, error)

	Close() error
}
