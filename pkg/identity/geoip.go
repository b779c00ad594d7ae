package identity

// GeoIP is an optional collaborator that maps an IP address to a location.
// Implementations may return empty strings when the address is unknown; a
// decision never depends on GeoIP being available.
type GeoIP interface {
	// CountryCode returns the ISO 3166-1 alpha-2 country code for the IP,
	// or "" if unknown.
	CountryCode(ip string) string

	// Region returns a provider-specific region name for the IP, or "" if
	// unknown.
	Region(ip string) string
}

// NoopGeoIP is a GeoIP that knows nothing. Used when no provider is wired.
type NoopGeoIP struct{}

// CountryCode always returns "".
func (NoopGeoIP) CountryCode(string) string { return "" }

// Region always returns "".
func (NoopGeoIP) Region(string) string { return "" }
