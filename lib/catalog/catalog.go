// Package catalog holds the static set of tracked cloud services.
//
// A Catalog is loaded once at startup and never mutated afterwards; every
// accessor returns copies.
package catalog

import (
	"bytes"
	_ "embed"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/fiffu/versionwatch/config"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type Platform struct {
	Name             string   `yaml:"name"`
	Label            string   `yaml:"label"`
	NameAlternatives []string `yaml:"name_alternatives"`
}

type Service struct {
	Platform         Platform
	Key              string
	Label            string
	NameAlternatives []string
	Public           bool
	SourceURL        string
}

func (p Platform) clone() Platform {
	p.NameAlternatives = slices.Clone(p.NameAlternatives)
	return p
}

func (s Service) clone() Service {
	s.Platform = s.Platform.clone()
	s.NameAlternatives = slices.Clone(s.NameAlternatives)
	return s
}

// CleanName is the key with dashes instead of underscores, used in links.
func (s Service) CleanName() string {
	return strings.ReplaceAll(s.Key, "_", "-")
}

type Catalog struct {
	platforms []Platform
	services  []Service
	byKey     map[string]int
}

func New(platforms []Platform, services []Service) (*Catalog, error) {
	c := &Catalog{
		platforms: make([]Platform, 0, len(platforms)),
		services:  make([]Service, 0, len(services)),
		byKey:     make(map[string]int, len(services)),
	}

	known := make(map[string]Platform, len(platforms))
	for _, p := range platforms {
		if p.Name == "" {
			return nil, errors.NotValidf("platform with empty name")
		}
		if _, dup := known[p.Name]; dup {
			return nil, errors.NotValidf("duplicate platform %q", p.Name)
		}
		if p.Label == "" {
			p.Label = p.Name
		}
		p = p.clone()
		known[p.Name] = p
		c.platforms = append(c.platforms, p)
	}

	for _, svc := range services {
		if svc.Key == "" {
			return nil, errors.NotValidf("service with empty key")
		}
		if _, dup := c.byKey[svc.Key]; dup {
			return nil, errors.NotValidf("duplicate service key %q", svc.Key)
		}
		p, ok := known[svc.Platform.Name]
		if !ok {
			return nil, errors.NotValidf("service %q on unknown platform %q", svc.Key, svc.Platform.Name)
		}
		svc = svc.clone()
		svc.Platform = p.clone()
		if svc.Label == "" {
			svc.Label = svc.Key
		}
		c.byKey[svc.Key] = len(c.services)
		c.services = append(c.services, svc)
	}

	return c, nil
}

type catalogFile struct {
	Platforms []Platform `yaml:"platforms"`
	Services  []struct {
		Key              string   `yaml:"key"`
		Platform         string   `yaml:"platform"`
		Label            string   `yaml:"label"`
		NameAlternatives []string `yaml:"name_alternatives"`
		Public           *bool    `yaml:"public"`
		SourceURL        string   `yaml:"source_url"`
	} `yaml:"services"`
}

// Load parses a YAML catalog. Services are public unless they say otherwise.
func Load(r io.Reader) (*Catalog, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, errors.Annotate(err, "decoding catalog")
	}

	services := make([]Service, 0, len(file.Services))
	for _, entry := range file.Services {
		public := true
		if entry.Public != nil {
			public = *entry.Public
		}
		services = append(services, Service{
			Platform:         Platform{Name: entry.Platform},
			Key:              entry.Key,
			Label:            entry.Label,
			NameAlternatives: entry.NameAlternatives,
			Public:           public,
			SourceURL:        entry.SourceURL,
		})
	}
	return New(file.Platforms, services)
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Load(bytes.NewReader(defaultCatalog))
}

func NewCatalog(cfg *config.Config, log *zap.Logger) (*Catalog, error) {
	var (
		c   *Catalog
		err error
	)
	if cfg.CatalogPath == "" {
		c, err = Default()
	} else {
		var f *os.File
		if f, err = os.Open(cfg.CatalogPath); err != nil {
			return nil, errors.Annotatef(err, "opening catalog %s", cfg.CatalogPath)
		}
		defer f.Close()
		c, err = Load(f)
	}
	if err != nil {
		return nil, err
	}

	log.Sugar().Infow("Catalog loaded", "services", len(c.services), "platforms", len(c.platforms))
	return c, nil
}

func (c *Catalog) Lookup(key string) (Service, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return Service{}, false
	}
	return c.services[i].clone(), true
}

func (c *Catalog) Has(key string) bool {
	_, ok := c.byKey[key]
	return ok
}

func (c *Catalog) Services() []Service {
	out := make([]Service, len(c.services))
	for i, svc := range c.services {
		out[i] = svc.clone()
	}
	return out
}

func (c *Catalog) ForPlatform(name string) []Service {
	var out []Service
	for _, svc := range c.services {
		if svc.Platform.Name == name {
			out = append(out, svc.clone())
		}
	}
	return out
}

func (c *Catalog) Platforms() []Platform {
	out := make([]Platform, len(c.platforms))
	for i, p := range c.platforms {
		out[i] = p.clone()
	}
	return out
}

func (c *Catalog) Platform(name string) (Platform, bool) {
	for _, p := range c.platforms {
		if p.Name == name {
			return p.clone(), true
		}
	}
	return Platform{}, false
}
