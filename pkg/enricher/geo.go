package enricher

import (
	"fmt"
	"net"
	"os"

	"github.com/veridian/vanguard/pkg/types"
	"github.com/yl2chen/cidranger"
	"gopkg.in/yaml.v3"
)

// GeoEntry is one row of the declarative network-prefix table.
type GeoEntry struct {
	CIDR        string  `yaml:"cidr"`
	City        string  `yaml:"city"`
	Country     string  `yaml:"country"`
	CountryCode string  `yaml:"country_code"`
	Latitude    float64 `yaml:"latitude"`
	Longitude   float64 `yaml:"longitude"`
}

// defaultGeoTable covers the private ranges plus a few well-known public
// prefixes; production deployments load a full table from YAML.
var defaultGeoTable = []GeoEntry{
	{CIDR: "10.0.0.0/8", City: "Local Network", Country: "Private"},
	{CIDR: "172.16.0.0/12", City: "Local Network", Country: "Private"},
	{CIDR: "192.168.0.0/16", City: "Local Network", Country: "Private"},
	{CIDR: "203.0.113.0/24", City: "Test Network", Country: "TEST"},
	{CIDR: "8.8.8.0/24", City: "Mountain View", Country: "US", CountryCode: "US", Latitude: 37.4056, Longitude: -122.0775},
	{CIDR: "1.1.1.0/24", City: "San Francisco", Country: "US", CountryCode: "US", Latitude: 37.7749, Longitude: -122.4194},
}

// unknownLocation is the explicit miss marker; a failed lookup is visible
// downstream rather than an absent field.
func unknownLocation() *types.LocationContext {
	return &types.LocationContext{
		City:        "Unknown",
		Country:     "Unknown",
		CountryCode: "XX",
	}
}

type geoEntry struct {
	network net.IPNet
	loc     types.LocationContext
}

func (e *geoEntry) Network() net.IPNet { return e.network }

// GeoTable answers longest-prefix-match lookups over a preloaded set of
// network prefixes.
type GeoTable struct {
	ranger cidranger.Ranger
}

// NewGeoTable builds a prefix trie from the given entries.
func NewGeoTable(entries []GeoEntry) (*GeoTable, error) {
	ranger := cidranger.NewPCTrieRanger()
	for _, e := range entries {
		_, network, err := net.ParseCIDR(e.CIDR)
		if err != nil {
			return nil, fmt.Errorf("invalid geo prefix %q: %w", e.CIDR, err)
		}
		err = ranger.Insert(&geoEntry{
			network: *network,
			loc: types.LocationContext{
				City:        e.City,
				Country:     e.Country,
				CountryCode: e.CountryCode,
				Latitude:    e.Latitude,
				Longitude:   e.Longitude,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to index geo prefix %q: %w", e.CIDR, err)
		}
	}
	return &GeoTable{ranger: ranger}, nil
}

// LoadGeoTable reads a YAML prefix table; an empty path yields the built-in
// defaults.
func LoadGeoTable(path string) (*GeoTable, error) {
	if path == "" {
		return NewGeoTable(defaultGeoTable)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read geo table: %w", err)
	}
	var entries []GeoEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse geo table: %w", err)
	}
	return NewGeoTable(entries)
}

// Lookup resolves an address to the location of its longest matching
// prefix. A miss returns the "Unknown" marker; an unparseable address
// returns an error.
func (g *GeoTable) Lookup(ip string) (*types.LocationContext, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("invalid address: %q", ip)
	}

	entries, err := g.ranger.ContainingNetworks(parsed)
	if err != nil {
		return nil, fmt.Errorf("prefix lookup failed: %w", err)
	}
	if len(entries) == 0 {
		return unknownLocation(), nil
	}

	// Pick the longest prefix among all containing networks.
	var best *geoEntry
	bestLen := -1
	for _, e := range entries {
		ge := e.(*geoEntry)
		ones, _ := ge.network.Mask.Size()
		if ones > bestLen {
			bestLen = ones
			best = ge
		}
	}
	loc := best.loc
	return &loc, nil
}
