// Package blaze speaks the Companion App dialect of EA's Blaze stack: the
// Process envelope, per-year service identifiers, and the error envelope the
// backend returns inside successful HTTP responses.
package blaze

import (
	"fmt"
	"strings"
)

// DefaultPlatform is assumed whenever a platform name is missing or unknown.
const DefaultPlatform = "xbsx"

// Header suffixes keyed by normalized platform. The gen suffix follows the
// hardware generation nomenclature the companion app expects.
var headerSuffix = map[string]string{
	"xbsx":         "xbsx-gen5",
	"xbox":         "xbsx-gen5",
	"xbox-series":  "xbsx-gen5",
	"ps5":          "ps5-gen5",
	"playstation":  "ps5-gen5",
	"playstation5": "ps5-gen5",
	"pc":           "pc-gen5",
	"steam":        "pc-gen5",
	"origin":       "pc-gen5",
	"windows":      "pc-gen5",
	"xone":         "xone-gen4",
	"ps4":          "ps4-gen4",
}

var entitlementSuffix = map[string]string{
	"xbsx":         "XBSX",
	"xbox":         "XBSX",
	"xbox-series":  "XBSX",
	"ps5":          "PS5",
	"playstation":  "PS5",
	"playstation5": "PS5",
	"pc":           "PC",
	"steam":        "PC",
	"origin":       "PC",
	"windows":      "PC",
	"xone":         "XONE",
	"ps4":          "PS4",
}

// Server-side license tags use a separate naming scheme; stadia is the odd
// one out with SDA.
var serverEntitlementSuffix = map[string]string{
	"xone":   "XONE",
	"ps4":    "PS4",
	"pc":     "PC",
	"ps5":    "PS5",
	"xbsx":   "XBSX",
	"stadia": "SDA",
}

// NormalizePlatform maps known aliases onto canonical platform names and
// falls back to the default for anything unknown.
func NormalizePlatform(platform string) string {
	p := strings.ToLower(strings.TrimSpace(platform))
	if _, ok := headerSuffix[p]; ok {
		return p
	}
	return DefaultPlatform
}

// Identifiers materializes the Companion identifiers for one Madden cycle.
// Year is the full cycle year (2026), not the two-digit title number.
type Identifiers struct {
	Year     int
	Platform string
}

func NewIdentifiers(year int, platform string) Identifiers {
	return Identifiers{Year: year, Platform: NormalizePlatform(platform)}
}

// BlazeHeader is the X-BLAZE-ID value for WAL calls, e.g.
// madden-2026-xbsx-gen5.
func (i Identifiers) BlazeHeader() string {
	return fmt.Sprintf("madden-%d-%s", i.Year, headerSuffix[i.Platform])
}

// ProductName is the WAL login productName, e.g. madden-2026-xbsx-mca.
func (i Identifiers) ProductName() string {
	return fmt.Sprintf("madden-%d-%s-mca", i.Year, i.Platform)
}

// ServiceSlug is the bare blaze service name, e.g. madden-2026-xbsx.
func (i Identifiers) ServiceSlug() string {
	return fmt.Sprintf("madden-%d-%s", i.Year, i.Platform)
}

// EntitlementCode is the short license tag checked during OAuth flows, e.g.
// MADDEN_26XBSX.
func (i Identifiers) EntitlementCode() string {
	return fmt.Sprintf("MADDEN_%02d%s", i.Year%100, entitlementSuffix[i.Platform])
}

// ServerEntitlement is the server license tag, e.g. MADDEN_26_XBSX_BLZ_SERVER.
// Platforms without a server tag fall back to the header platform family.
func (i Identifiers) ServerEntitlement() string {
	suffix, ok := serverEntitlementSuffix[i.Platform]
	if !ok {
		suffix = entitlementSuffix[i.Platform]
	}
	return fmt.Sprintf("MADDEN_%02d_%s_BLZ_SERVER", i.Year%100, suffix)
}
