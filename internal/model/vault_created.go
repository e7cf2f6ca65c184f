package model

// VaultCreated is the decoded factory event announcing a new vault.
type VaultCreated struct {
	ChainID        uint64 `json:"chain_id"`
	BlockNumber    uint64 `json:"block_number"`
	TxHash         string `json:"tx_hash"`
	LogIndex       uint64 `json:"log_index"`
	Factory        string `json:"factory"`
	Owner          string `json:"owner"`
	Vault          string `json:"vault"`
	AssetKey       string `json:"asset_key"`
	AssetCode      string `json:"asset_code,omitempty"`
	ThresholdFixed string `json:"threshold_fixed"`
	UnlockTime     uint64 `json:"unlock_time"`
	Timestamp      uint64 `json:"timestamp"`
}
