package model

import "time"

type Transfer struct {
	TxHash       string    `json:"tx_hash"`
	BlockNumber  uint64    `json:"block_number"`
	LogIndex     uint      `json:"log_index"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	Amount       string    `json:"amount"`
	AmountUnits  string    `json:"amount_units"`
	Direction    string    `json:"direction"`
	Timestamp    time.Time `json:"timestamp"`
	Counterparty string    `json:"counterparty"`
}

type GetTransactionHistoryRequest struct {
	Address string `form:"address"`
}

type GetTransactionHistoryResponse struct {
	Transfers      []Transfer `json:"transfers"`
	TotalReceived  string     `json:"total_received"`
	TotalSent      string     `json:"total_sent"`
	UniqueCustomer int        `json:"unique_customers"`
	FromBlock      uint64     `json:"from_block"`
	ToBlock        uint64     `json:"to_block"`
}

type LookupNamesRequest struct {
	// Addresses is a comma separated list.
	Addresses string `form:"addresses"`
}

type LookupNamesResponse struct {
	Names map[string]string `json:"names"`
}
