package tos

import (
	"context"
	"net/http"
	"strings"
	"unicode"
)

// Search domains of the TOS API.
const (
	DomainMeteorological        = "meteorological"
	DomainGeophysical           = "geophysical"
	DomainHydrological          = "hydrological"
	DomainRemoteSensing         = "remote_sensing"
	DomainRemoteSensingPlatform = "remote_sensing_platform"
	DomainGeneral               = "general"
)

// DefaultDomains are searched if no domains are given.
var DefaultDomains = []string{
	DomainMeteorological,
	DomainGeophysical,
	DomainHydrological,
	DomainRemoteSensing,
	DomainRemoteSensingPlatform,
	DomainGeneral,
}

type searchBody struct {
	Code  string `json:"code"`
	Value string `json:"value"`
}

// Variants returns the identifiers to try when searching for a human-entered station code.
// Beside the original it contains the lowercase form, which is skipped for platform codes like "v2",
// and the unpadded form of codes starting with "V0", e.g. "V012" gives "V12".
func Variants(identifier string) []string {
	variants := []string{identifier}
	add := func(v string) {
		for _, have := range variants {
			if have == v {
				return
			}
		}
		variants = append(variants, v)
	}

	if lower := strings.ToLower(identifier); lower != identifier && !isPlatformCode(identifier) {
		add(lower)
	}
	if strings.HasPrefix(identifier, "V0") {
		add("V" + identifier[2:])
	}
	return variants
}

// isPlatformCode checks for codes of the form v2, V12 that must keep their case.
func isPlatformCode(identifier string) bool {
	r := []rune(identifier)
	if len(r) < 2 {
		return false
	}
	return (r[0] == 'v' || r[0] == 'V') && unicode.IsDigit(r[1])
}

// entityType returns the entity type used in the search endpoint for a domain.
func entityType(domain string) string {
	if domain == DomainRemoteSensingPlatform {
		return "platform"
	}
	return "station"
}

// SearchStation searches stations by attribute code, e.g. "marker", over all identifier
// variants and domains. Results are unique by entity id, in the order they were found.
// If domains is empty the DefaultDomains are used. Platforms get the location of their parent.
// An empty result is not an error, a failing request is returned as ErrTransport.
func (c *Client) SearchStation(ctx context.Context, identifier, code string, domains ...string) ([]Entity, error) {
	if code == "" {
		code = "marker"
	}
	if len(domains) == 0 {
		domains = DefaultDomains
	}
	domains = withPlatformDomain(domains)

	var found []Entity
	seen := make(map[int]bool)
	for _, variant := range Variants(identifier) {
		for _, domain := range domains {
			var res []Entity
			endpoint := c.endpoint("entity", "search", entityType(domain), domain)
			if err := c.do(ctx, http.MethodPost, endpoint, searchBody{Code: code, Value: variant}, &res); err != nil {
				return nil, err
			}
			for _, ent := range res {
				if seen[ent.ID] {
					continue
				}
				seen[ent.ID] = true
				ent.Domain = domain
				ent.Variant = variant
				ent.SearchKey = code
				if ent.ParentID != 0 && ent.Subtype == SubtypePlatform {
					loc, err := c.location(ctx, ent.ParentID)
					if err != nil {
						return nil, err
					}
					ent.Location = loc
				}
				found = append(found, ent)
			}
		}
	}
	return found, nil
}

// location returns the current name and coordinates of the entity.
func (c *Client) location(ctx context.Context, id int) (*Location, error) {
	parent, err := c.Entity(ctx, id)
	if err != nil {
		return nil, err
	}
	loc := &Location{ID: id}
	loc.Name, _ = parent.Attr("name")
	loc.Lat, _ = parent.Attr("lat")
	loc.Lon, _ = parent.Attr("lon")
	return loc, nil
}

// withPlatformDomain adds the platform domain if remote sensing stations are searched.
func withPlatformDomain(domains []string) []string {
	hasRS, hasPlatform := false, false
	for _, d := range domains {
		switch d {
		case DomainRemoteSensing:
			hasRS = true
		case DomainRemoteSensingPlatform:
			hasPlatform = true
		}
	}
	if hasRS && !hasPlatform {
		return append(append([]string{}, domains...), DomainRemoteSensingPlatform)
	}
	return domains
}
