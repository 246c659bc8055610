// Package browsertest provides an in-memory browser backend for pipeline tests.
package browsertest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"pricescout/pricescout/services/browser"
)

// Handler serves the HTML for a navigated URL.
type Handler func(ctx context.Context, url string) (string, error)

// Connector is a fake browser.Connector that records every session it hands out.
type Connector struct {
	// Serve answers navigations; nil serves an empty document.
	Serve Handler
	// ConnectErr, when set, is consulted before each connect.
	ConnectErr func(attempt int) error
	// Delay is applied to every navigation.
	Delay time.Duration

	connects   atomic.Int32
	pageOpens  atomic.Int32
	pageCloses atomic.Int32
	inFlight   atomic.Int32
	maxFlight  atomic.Int32

	mu       sync.Mutex
	sessions []*Session
}

func (c *Connector) Connect(ctx context.Context) (browser.Session, error) {
	attempt := int(c.connects.Add(1))
	if c.ConnectErr != nil {
		if err := c.ConnectErr(attempt); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &Session{connector: c}
	c.mu.Lock()
	c.sessions = append(c.sessions, s)
	c.mu.Unlock()

	cur := c.inFlight.Add(1)
	for {
		max := c.maxFlight.Load()
		if cur <= max || c.maxFlight.CompareAndSwap(max, cur) {
			break
		}
	}
	return s, nil
}

// Sessions returns every session opened so far.
func (c *Connector) Sessions() []*Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Session, len(c.sessions))
	copy(out, c.sessions)
	return out
}

func (c *Connector) Connects() int      { return int(c.connects.Load()) }
func (c *Connector) PageOpens() int     { return int(c.pageOpens.Load()) }
func (c *Connector) PageCloses() int    { return int(c.pageCloses.Load()) }
func (c *Connector) MaxConcurrent() int { return int(c.maxFlight.Load()) }

// Session counts its Close calls so tests can assert exactly-once release.
type Session struct {
	connector *Connector
	closes    atomic.Int32
	visited   []string
	mu        sync.Mutex
}

func (s *Session) NewPage(ctx context.Context) (browser.Page, error) {
	if s.closes.Load() > 0 {
		return nil, errors.New("browsertest: session closed")
	}
	s.connector.pageOpens.Add(1)
	return &Page{session: s}, nil
}

func (s *Session) Close() error {
	if s.closes.Add(1) == 1 {
		s.connector.inFlight.Add(-1)
	}
	return nil
}

func (s *Session) Closes() int { return int(s.closes.Load()) }

// Visited lists the URLs navigated in this session, in call order.
func (s *Session) Visited() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.visited))
	copy(out, s.visited)
	return out
}

type Page struct {
	session *Session
	html    string
	closed  atomic.Bool
}

func (p *Page) Goto(ctx context.Context, url string) error {
	c := p.session.connector
	p.session.mu.Lock()
	p.session.visited = append(p.session.visited, url)
	p.session.mu.Unlock()

	if c.Delay > 0 {
		select {
		case <-time.After(c.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if c.Serve == nil {
		p.html = "<html><body></body></html>"
		return nil
	}
	html, err := c.Serve(ctx, url)
	if err != nil {
		return err
	}
	p.html = html
	return nil
}

func (p *Page) Content(ctx context.Context) (string, error) {
	if p.closed.Load() {
		return "", errors.New("browsertest: page closed")
	}
	return p.html, nil
}

func (p *Page) Close() error {
	if p.closed.CompareAndSwap(false, true) {
		p.session.connector.pageCloses.Add(1)
	}
	return nil
}
