package model

import (
	"time"
)

const (
	RunKindOnboard     = "onboard"
	RunKindPermissions = "permissions"
	RunKindTransfers   = "transfers"

	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// RunRecord is one journaled orchestration run. It is written for operators
// and auditors; the orchestrator never reads it back.
type RunRecord struct {
	ID      string `json:"id" gorm:"primaryKey;type:text"`
	Kind    string `json:"kind" gorm:"type:text;index"`
	Status  string `json:"status" gorm:"type:text"`
	ChainID int64  `json:"chain_id"`
	Account string `json:"account,omitempty" gorm:"type:text;index"`
	Module  string `json:"module,omitempty" gorm:"type:text"`

	// Failure position, set when Status is failed
	Step         string `json:"step,omitempty" gorm:"type:text"`
	ErrorCode    string `json:"error_code,omitempty" gorm:"type:text"`
	ErrorMessage string `json:"error_message,omitempty" gorm:"type:text"`

	// Comma separated transaction hashes in submission order
	TxHashes string `json:"tx_hashes,omitempty" gorm:"type:text"`

	StartedAt  time.Time `json:"started_at" gorm:"index"`
	FinishedAt time.Time `json:"finished_at"`
}

func (RunRecord) TableName() string {
	return "onboarding_runs"
}
