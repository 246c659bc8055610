package browser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"pricescout/pricescout/utils/types"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightConnector connects to a remote Chromium (browserless or any CDP
// endpoint) through a single local playwright driver.
type PlaywrightConnector struct {
	pw          *playwright.Playwright
	endpoint    string
	stepTimeout time.Duration
}

// NewPlaywrightConnector starts the playwright driver. Browsers are remote, so
// none are installed locally.
func NewPlaywrightConnector(endpoint, apiKey string, stepTimeout time.Duration) (*PlaywrightConnector, error) {
	wsURL, err := EndpointWithToken(endpoint, apiKey)
	if err != nil {
		return nil, err
	}
	pw, err := playwright.Run(&playwright.RunOptions{SkipInstallBrowsers: true})
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	if stepTimeout <= 0 {
		stepTimeout = 30 * time.Second
	}
	return &PlaywrightConnector{pw: pw, endpoint: wsURL, stepTimeout: stepTimeout}, nil
}

// EndpointWithToken appends the backend credential as the token query parameter.
func EndpointWithToken(endpoint, apiKey string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid browser endpoint: %w", err)
	}
	if apiKey != "" {
		q := u.Query()
		q.Set("token", apiKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Stop shuts the playwright driver down.
func (c *PlaywrightConnector) Stop() {
	if c.pw != nil {
		c.pw.Stop()
	}
}

func (c *PlaywrightConnector) Connect(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := c.pw.Chromium.ConnectOverCDP(c.endpoint, playwright.BrowserTypeConnectOverCDPOptions{
		Timeout: playwright.Float(timeoutMillis(ctx, c.stepTimeout)),
	})
	if err != nil {
		return nil, classifyConnectError(err)
	}
	return &playwrightSession{browser: b, stepTimeout: c.stepTimeout}, nil
}

// unreachableMarkers are the driver messages of a backend that cannot be
// dialed or refuses the credential. Anything else (429, a busy pool, a slow
// handshake) is left to fail only the product that hit it.
var unreachableMarkers = []string{
	"econnrefused",
	"connection refused",
	"enotfound",
	"no such host",
	"getaddrinfo",
	"ehostunreach",
	"network is unreachable",
	"401 unauthorized",
	"403 forbidden",
}

// classifyConnectError wraps err with types.ErrTransport when it means the
// browser backend is unreachable as a whole.
func classifyConnectError(err error) error {
	if err == nil {
		return nil
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %w", types.ErrTransport, err)
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range unreachableMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %w", types.ErrTransport, err)
		}
	}
	return err
}

type playwrightSession struct {
	browser     playwright.Browser
	stepTimeout time.Duration
}

func (s *playwrightSession) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := s.browser.NewPage()
	if err != nil {
		return nil, err
	}
	return &playwrightPage{page: page, stepTimeout: s.stepTimeout}, nil
}

func (s *playwrightSession) Close() error {
	return s.browser.Close()
}

type playwrightPage struct {
	page        playwright.Page
	stepTimeout time.Duration
}

func (p *playwrightPage) Goto(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(target, playwright.PageGotoOptions{
		Timeout:   playwright.Float(timeoutMillis(ctx, p.stepTimeout)),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return err
}

func (p *playwrightPage) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.page.SetDefaultTimeout(timeoutMillis(ctx, p.stepTimeout))
	return p.page.Content()
}

func (p *playwrightPage) Close() error {
	return p.page.Close()
}

// timeoutMillis picks the tighter of the ctx deadline and the step timeout.
func timeoutMillis(ctx context.Context, step time.Duration) float64 {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < step {
			if remaining < time.Millisecond {
				remaining = time.Millisecond
			}
			return float64(remaining.Milliseconds())
		}
	}
	return float64(step.Milliseconds())
}
