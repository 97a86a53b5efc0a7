package container

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
	"golang.org/x/mod/semver"

	"github.com/GriffinCanCode/webharvest/internal/infrastructure/logging"
)

var (
	ErrSiteNotFound = errors.New("site not found")
	ErrPageNotFound = errors.New("no page matches url")
)

// Resolution is the catalog slice that applies to one URL
type Resolution struct {
	Site        string       `json:"site"`
	Version     string       `json:"version"`
	Page        string       `json:"page"`
	Definitions []Definition `json:"definitions"`
	Rules       []RuleSpec   `json:"rules,omitempty"`
}

// index is an immutable view over a set of catalogs
type index struct {
	all    []*Catalog
	latest map[string]*Catalog
	sites  []string
}

// Registry holds the loaded catalogs. The whole set is replaced atomically
// by Load; readers never observe a partial catalog.
type Registry struct {
	current atomic.Pointer[index]
	logger  *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{logger: logging.OrNop(logger)}
	r.current.Store(&index{latest: map[string]*Catalog{}})
	return r
}

// Load validates catalogs and swaps them in. Nothing is replaced if any
// catalog is invalid or the same site and version appear twice.
func (r *Registry) Load(catalogs []*Catalog) error {
	var errs []error
	seen := make(map[string]string)

	for _, c := range catalogs {
		if err := Validate(c); err != nil {
			errs = append(errs, err)
			continue
		}
		key := c.Site + "@" + CanonicalVersion(c.Version)
		if prev, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("%w: %s declared by %s and %s", ErrInvalidCatalog, key, prev, c.Source))
			continue
		}
		seen[key] = c.Source
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	idx := &index{
		all:    slices.Clone(catalogs),
		latest: make(map[string]*Catalog),
	}
	slices.SortStableFunc(idx.all, func(a, b *Catalog) int {
		if c := strings.Compare(a.Site, b.Site); c != 0 {
			return c
		}
		return -semver.Compare(CanonicalVersion(a.Version), CanonicalVersion(b.Version))
	})
	for _, c := range idx.all {
		if _, ok := idx.latest[c.Site]; !ok {
			idx.latest[c.Site] = c
			idx.sites = append(idx.sites, c.Site)
		}
	}

	r.current.Store(idx)
	r.logger.Info("Container catalogs loaded",
		zap.Int("catalogs", len(idx.all)),
		zap.Strings("sites", idx.sites))
	return nil
}

// Catalogs returns every loaded catalog, ordered by site then newest version
func (r *Registry) Catalogs() []*Catalog {
	return slices.Clone(r.current.Load().all)
}

// Sites returns the loaded site names in order
func (r *Registry) Sites() []string {
	return slices.Clone(r.current.Load().sites)
}

// Site returns the newest catalog for a site
func (r *Registry) Site(site string) (*Catalog, bool) {
	c, ok := r.current.Load().latest[site]
	return c, ok
}

// Version returns a specific catalog version for a site
func (r *Registry) Version(site, version string) (*Catalog, bool) {
	want := CanonicalVersion(version)
	for _, c := range r.current.Load().all {
		if c.Site == site && CanonicalVersion(c.Version) == want {
			return c, true
		}
	}
	return nil, false
}

// Definitions returns the definitions of one page of a site's newest catalog
func (r *Registry) Definitions(site, page string) ([]Definition, error) {
	res, err := r.Lookup(site, page)
	if err != nil {
		return nil, err
	}
	return res.Definitions, nil
}

// Lookup returns the resolution for a page of a site's newest catalog. An
// empty page selects the first page.
func (r *Registry) Lookup(site, page string) (*Resolution, error) {
	c, ok := r.Site(site)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSiteNotFound, site)
	}
	if page == "" && len(c.Pages) > 0 {
		page = c.Pages[0].ID
	}
	p, ok := c.Page(page)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrPageNotFound, site, page)
	}
	return &Resolution{
		Site:        c.Site,
		Version:     CanonicalVersion(c.Version),
		Page:        p.ID,
		Definitions: p.Containers,
		Rules:       p.Rules,
	}, nil
}

// Resolve finds the first page, across the newest catalog of every site,
// whose url_patterns match the URL's host and path.
func (r *Registry) Resolve(rawURL string) (*Resolution, error) {
	target, err := matchTarget(rawURL)
	if err != nil {
		return nil, err
	}

	idx := r.current.Load()
	for _, site := range idx.sites {
		c := idx.latest[site]
		for _, p := range c.Pages {
			if matchesAny(p.URLPatterns, target) {
				return &Resolution{
					Site:        c.Site,
					Version:     CanonicalVersion(c.Version),
					Page:        p.ID,
					Definitions: p.Containers,
					Rules:       p.Rules,
				}, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrPageNotFound, rawURL)
}

// matchTarget reduces a URL to "host/path" for pattern matching
func matchTarget(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrPageNotFound, rawURL)
	}
	path := strings.TrimSuffix(u.EscapedPath(), "/")
	return host + path, nil
}

func matchesAny(patterns []string, target string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, target); err == nil && ok {
			return true
		}
	}
	return false
}
