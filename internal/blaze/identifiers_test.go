package blaze

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentifiersDeriveNames(t *testing.T) {
	cases := []struct {
		name     string
		year     int
		platform string
		header   string
		product  string
		slug     string
		ent      string
		server   string
	}{
		{
			name:     "xbsx 25",
			year:     2025,
			platform: "xbsx",
			header:   "madden-2025-xbsx-gen5",
			product:  "madden-2025-xbsx-mca",
			slug:     "madden-2025-xbsx",
			ent:      "MADDEN_25XBSX",
			server:   "MADDEN_25_XBSX_BLZ_SERVER",
		},
		{
			name:     "ps5 26",
			year:     2026,
			platform: "ps5",
			header:   "madden-2026-ps5-gen5",
			product:  "madden-2026-ps5-mca",
			slug:     "madden-2026-ps5",
			ent:      "MADDEN_26PS5",
			server:   "MADDEN_26_PS5_BLZ_SERVER",
		},
		{
			name:     "ps4 stays gen4",
			year:     2025,
			platform: "ps4",
			header:   "madden-2025-ps4-gen4",
			product:  "madden-2025-ps4-mca",
			slug:     "madden-2025-ps4",
			ent:      "MADDEN_25PS4",
			server:   "MADDEN_25_PS4_BLZ_SERVER",
		},
		{
			name:     "steam keeps its own slug but licenses as pc",
			year:     2026,
			platform: "steam",
			header:   "madden-2026-pc-gen5",
			product:  "madden-2026-steam-mca",
			slug:     "madden-2026-steam",
			ent:      "MADDEN_26PC",
			server:   "MADDEN_26_PC_BLZ_SERVER",
		},
		{
			name:     "unknown platform falls back to xbsx",
			year:     2026,
			platform: "dreamcast",
			header:   "madden-2026-xbsx-gen5",
			product:  "madden-2026-xbsx-mca",
			slug:     "madden-2026-xbsx",
			ent:      "MADDEN_26XBSX",
			server:   "MADDEN_26_XBSX_BLZ_SERVER",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := NewIdentifiers(tc.year, tc.platform)
			require.Equal(t, tc.header, id.BlazeHeader())
			require.Equal(t, tc.product, id.ProductName())
			require.Equal(t, tc.slug, id.ServiceSlug())
			require.Equal(t, tc.ent, id.EntitlementCode())
			require.Equal(t, tc.server, id.ServerEntitlement())
		})
	}
}

func TestNormalizePlatformAliases(t *testing.T) {
	require.Equal(t, "ps5", NormalizePlatform(" PS5 "))
	require.Equal(t, "xbox-series", NormalizePlatform("XBOX-Series"))
	require.Equal(t, DefaultPlatform, NormalizePlatform(""))
	require.Equal(t, DefaultPlatform, NormalizePlatform("n64"))
}
