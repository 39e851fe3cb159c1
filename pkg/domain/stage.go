package domain

// Stage is a named position in the pipeline graph.
type Stage string

// Canonical service-center stages. Graphs are free to declare their own
// stage sets; these constants exist so the default graph, the domain
// modules and the tests agree on spelling.
const (
	StageLead      Stage = "LEAD"
	StageRFQ       Stage = "RFQ"
	StageQuote     Stage = "QUOTE"
	StageOrder     Stage = "ORDER"
	StagePlanning  Stage = "PLANNING"
	StageJob       Stage = "JOB"
	StageShopFloor Stage = "SHOP_FLOOR"
	StageQC        Stage = "QC"
	StagePack      Stage = "PACK"
	StageShip      Stage = "SHIP"
	StageInvoice   Stage = "INVOICE"
	StageAnalytics Stage = "ANALYTICS"
	StageCancelled Stage = "CANCELLED"
)

// Action is the name of a requested transition (e.g. "QUALIFY", "DISPATCH").
type Action string

// Role identifies the capability required to trigger a transition.
type Role string

const (
	RoleSystem    Role = "SYSTEM"
	RoleSales     Role = "SALES"
	RolePlanner   Role = "PLANNER"
	RoleOperator  Role = "OPERATOR"
	RoleInspector Role = "INSPECTOR"
	RoleShipper   Role = "SHIPPER"
	RoleFinance   Role = "FINANCE"
	RoleGuest     Role = "GUEST"
)

// Channel is the intake source of a pipeline instance.
type Channel string

const (
	ChannelWeb    Channel = "WEB"
	ChannelEmail  Channel = "EMAIL"
	ChannelPhone  Channel = "PHONE"
	ChannelEDI    Channel = "EDI"
	ChannelWalkIn Channel = "WALKIN"
)

// Priority ranks an instance for scheduling display. Higher is more urgent.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityRush
	PriorityHot
)

func (p Priority) String() string {
	switch p {
	case PriorityRush:
		return "RUSH"
	case PriorityHot:
		return "HOT"
	default:
		return "NORMAL"
	}
}

// ParsePriority converts a string label back to a Priority.
// Unknown labels map to PriorityNormal.
func ParsePriority(s string) Priority {
	switch s {
	case "RUSH":
		return PriorityRush
	case "HOT":
		return PriorityHot
	default:
		return PriorityNormal
	}
}
