package blaze

import "fmt"

// Operation names accepted by Strategy.Command.
const (
	OpSearchAuctions        = "search_auctions"
	OpRefreshAuctionDetails = "refresh_auction_details"
	OpGetAuctionBids        = "get_auction_bids"
	OpGetHubEntryData       = "get_hub_entry_data"
	OpGetBinderPage         = "get_binder_page"
)

// DefaultVersion is the most recent cycle confirmed against live traffic.
const DefaultVersion = 26

// Command pairs a wire command name with its numeric id.
type Command struct {
	Name string
	ID   int
}

// Strategy carries the per-cycle wire configuration: the X-BLAZE-ID header,
// the application key, and the command table. M26 shares the M25 command ids
// wholesale; only the blaze id header differs.
type Strategy struct {
	Version     int
	BlazeID     string
	AppKey      string
	ComponentID int
	commands    map[string]Command
}

// Command resolves an operation name to its wire command.
func (s Strategy) Command(op string) (Command, error) {
	c, ok := s.commands[op]
	if !ok {
		return Command{}, fmt.Errorf("unknown command %q for version %d", op, s.Version)
	}
	return c, nil
}

// Operations lists the operation names this strategy supports.
func (s Strategy) Operations() []string {
	ops := make([]string, 0, len(s.commands))
	for op := range s.commands {
		ops = append(ops, op)
	}
	return ops
}

// Command ids confirmed working for the 25 cycle and re-confirmed unchanged
// for 26.
var baseCommands = map[string]Command{
	OpGetHubEntryData:       {Name: "GetHubEntryData", ID: 9114},
	OpGetBinderPage:         {Name: "GetBinderPage", ID: 9121},
	OpSearchAuctions:        {Name: "Mobile_SearchAuctions", ID: 9153},
	OpRefreshAuctionDetails: {Name: "Mobile_RefreshAuctionDetails", ID: 9154},
	OpGetAuctionBids:        {Name: "Mobile_GetAuctionBids", ID: 9157},
}

// M26BlazeIDs maps platform names onto the 26-cycle X-BLAZE-ID values that
// answer on the Process endpoint. The gen-suffixed 26 names 404 there, unlike
// the 25 cycle.
var M26BlazeIDs = map[string]string{
	"xbox":         "madden-2026-xbox",
	"xbox-series":  "madden-2026-xbox-series",
	"xbsx":         "madden-2026-xbsx",
	"playstation":  "madden-2026-playstation",
	"playstation5": "madden-2026-playstation5",
	"ps5":          "madden-2026-ps5",
	"pc":           "madden-2026-pc",
	"steam":        "madden-2026-steam",
	"origin":       "madden-2026-origin",
	"windows":      "madden-2026-windows",
	"default":      "madden-2026",
}

func m25Strategy() Strategy {
	return Strategy{
		Version:     25,
		BlazeID:     "madden-2025-xbsx-gen5",
		AppKey:      "MADDEN-MCA",
		ComponentID: 2050,
		commands:    baseCommands,
	}
}

func m26Strategy(platform string) Strategy {
	blazeID, ok := M26BlazeIDs[platform]
	if !ok {
		blazeID = M26BlazeIDs["default"]
	}
	s := m25Strategy()
	s.Version = 26
	s.BlazeID = blazeID
	return s
}

// PickStrategy returns the strategy for a cycle. Unknown versions fall back
// to the 25-cycle configuration; a zero version selects the default cycle.
func PickStrategy(version int, platform string) Strategy {
	if version == 0 {
		version = DefaultVersion
	}
	switch version {
	case 26:
		return m26Strategy(platform)
	default:
		return m25Strategy()
	}
}
