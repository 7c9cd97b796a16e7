package model

import (
	"net/http"
	"time"
)

// Request is a transport-agnostic outbound HTTP request.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

// Response is the buffered result of a Request.
type Response struct {
	Request    *Request
	Headers    http.Header
	Body       []byte
	StatusCode int
	FetchedAt  time.Time
	Elapsed    time.Duration
}
