package webclient

import (
	"errors"
	"net/http"

	"github.com/raysh454/rankdesk/internal/logging"
)

// New constructs the default net/http backed client.
func New(cfg Config, logger logging.Logger) (WebClient, error) {
	if logger == nil {
		return nil, errors.New("webclient: logger is nil")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return NewNetHTTPClient(cfg, logger, &http.Client{Timeout: timeout})
}
