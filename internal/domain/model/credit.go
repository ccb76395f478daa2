package model

// SettlementAction names which credit RPC settled a generation.
type SettlementAction string

const (
	SettlementFinalize SettlementAction = "finalize"
	SettlementRefund   SettlementAction = "refund"
)

// SettlementResult mirrors the {success, error} shape returned to callers of
// the credit RPCs. Ledger arithmetic lives in the database.
type SettlementResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
