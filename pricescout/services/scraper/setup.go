package scraper

import (
	"fmt"

	"pricescout/pricescout/config"
	"pricescout/pricescout/services/browser"
	"pricescout/pricescout/services/extractor"
	"pricescout/pricescout/services/filter"
)

// Setup builds the production orchestrator from cfg: site strategy, remote
// playwright connector and session manager. stop shuts the driver down.
func Setup(cfg config.Config) (o *Orchestrator, stop func(), err error) {
	sites, err := config.LoadSites(cfg.SitesDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load sites: %w", err)
	}
	strategy, err := extractor.ForSite(sites, cfg.SiteID)
	if err != nil {
		return nil, nil, err
	}
	connector, err := browser.NewPlaywrightConnector(cfg.BrowserEndpoint, cfg.BrowserAPIKey, cfg.StepTimeout)
	if err != nil {
		return nil, nil, err
	}
	manager := browser.NewManager(connector, cfg.BrowserConnectRPS)
	o = NewOrchestrator(manager, strategy, OptionsFromConfig(cfg))
	return o, connector.Stop, nil
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		ChunkSize:   cfg.ChunkSize,
		StepTimeout: cfg.StepTimeout,
		Filter: filter.Options{
			CapMultiplier: cfg.CapMultiplier,
			Percentage:    cfg.PricePercentage,
			Limit:         cfg.CandidateLimit,
		},
	}
}
