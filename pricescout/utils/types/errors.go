package types

import "errors"

var (
	ErrConnection      = errors.New("browser connection failed")
	ErrNavigation      = errors.New("navigation failed")
	ErrParse           = errors.New("page parse failed")
	ErrImageFetch      = errors.New("image fetch failed")
	ErrTransport       = errors.New("scraping backend unreachable")
	ErrSessionReleased = errors.New("session already released")
	ErrInvalidRequest  = errors.New("invalid request")
)
