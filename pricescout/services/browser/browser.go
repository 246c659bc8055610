// Package browser owns the external browser automation sessions used by the
// scraping pipelines. One Session serves exactly one product query.
package browser

import (
	"context"
)

// Page is a single navigation context inside a Session.
type Page interface {
	Goto(ctx context.Context, url string) error
	Content(ctx context.Context) (string, error)
	Close() error
}

// Session is one external browser connection.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Connector opens new sessions against the automation backend.
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}
