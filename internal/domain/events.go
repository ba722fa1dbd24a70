package domain

// TradeEventOpened and TradeEventSettled label the two trade lifecycle
// transitions published to the event bus.
const (
	TradeEventOpened  = "opened"
	TradeEventSettled = "settled"
)

// TradeEvent is published when a position opens or settles. Exactly one of
// Open or Trade is set, matching Type.
type TradeEvent struct {
	Type  string            `json:"type"`
	Mode  Mode              `json:"mode"`
	Open  *OpenPositionView `json:"open,omitempty"`
	Trade *SettledTrade     `json:"trade,omitempty"`
}

// HaltEvent is published when the capital-protection guard halts or resumes
// a variant.
type HaltEvent struct {
	Mode   Mode   `json:"mode"`
	Halted bool   `json:"halted"`
	Reason string `json:"reason,omitempty"`
}
