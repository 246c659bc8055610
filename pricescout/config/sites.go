package config

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

//go:embed sites/*.yaml
var builtinSites embed.FS

// SiteConfig describes how to search one marketplace and where its data
// lives in the result and detail pages.
type SiteConfig struct {
	ID                  string    `yaml:"id"`
	Name                string    `yaml:"name"`
	SearchURL           string    `yaml:"search_url"`
	Separator           string    `yaml:"separator"`
	ThousandsSeparators string    `yaml:"thousands_separators"`
	Selectors           Selectors `yaml:"selectors"`
}

type Selectors struct {
	Result        string `yaml:"result"`
	PriceInteger  string `yaml:"price_integer"`
	PriceFraction string `yaml:"price_fraction"`
	Link          string `yaml:"link"`
	Title         string `yaml:"title"`
	Image         string `yaml:"image"`
}

func (s *SiteConfig) validate() error {
	switch {
	case s.ID == "":
		return fmt.Errorf("site config: missing id")
	case s.SearchURL == "":
		return fmt.Errorf("site %s: missing search_url", s.ID)
	case s.Selectors.Result == "" || s.Selectors.PriceInteger == "":
		return fmt.Errorf("site %s: result and price_integer selectors are required", s.ID)
	}
	if s.Separator == "" {
		s.Separator = "-"
	}
	if s.Selectors.Link == "" {
		s.Selectors.Link = "a"
	}
	return nil
}

// LoadSites returns the embedded site configs, overridden by any *.yaml
// found in dir when dir is non-empty.
func LoadSites(dir string) (map[string]*SiteConfig, error) {
	sites := make(map[string]*SiteConfig)
	if err := loadSitesFS(builtinSites, "sites", sites); err != nil {
		return nil, err
	}
	if dir == "" {
		return sites, nil
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("sites dir: %w", err)
	}
	if err := loadSitesFS(os.DirFS(dir), ".", sites); err != nil {
		return nil, err
	}
	return sites, nil
}

func loadSitesFS(fsys fs.FS, root string, into map[string]*SiteConfig) error {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".yaml" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(root, entry.Name()))
		if err != nil {
			return err
		}
		site, err := ParseSite(data)
		if err != nil {
			return fmt.Errorf("%s: %w", entry.Name(), err)
		}
		into[site.ID] = site
	}
	return nil
}

func ParseSite(data []byte) (*SiteConfig, error) {
	var site SiteConfig
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, err
	}
	if err := site.validate(); err != nil {
		return nil, err
	}
	return &site, nil
}
