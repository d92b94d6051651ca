package model

type TransferDirection string

const (
	// ToAccount moves tokens from the operator EOA into the Account.
	ToAccount TransferDirection = "to_account"
	// FromAccount moves tokens from the Account back to the operator.
	FromAccount TransferDirection = "from_account"
)

// OnboardRequest represents the incoming JSON body of POST /v1/onboard.
type OnboardRequest struct {
	// Owner of the new Safe. Must be the operator when given.
	Owner string `json:"owner,omitempty"`
	// ReuseAccount skips the Safe deployment and onboards Account instead.
	ReuseAccount bool   `json:"reuse_account,omitempty"`
	Account      string `json:"account,omitempty"`
	PermissionsRequest
	Transfers []TransferRequest `json:"transfers,omitempty"`
}

// PermissionsRequest represents POST /v1/accounts/:address/permissions.
type PermissionsRequest struct {
	SaltNonce string `json:"salt_nonce,omitempty"` // decimal or 0x hex
	// DeterministicSalt derives the salt from the account when SaltNonce is
	// empty. Without it every call draws a fresh salt, so a module that is
	// already deployed never collides with the new one.
	DeterministicSalt bool     `json:"deterministic_salt,omitempty"`
	RoleMember        string   `json:"role_member,omitempty"`
	AdditionalTargets []string `json:"additional_targets,omitempty"`
}

type TransferRequest struct {
	Token     string            `json:"token" binding:"required"`
	Amount    any               `json:"amount" binding:"required"` // base units, string preferred
	Direction TransferDirection `json:"direction" binding:"required,oneof=to_account from_account"`
}

type TransfersRequest struct {
	Transfers []TransferRequest `json:"transfers" binding:"required,min=1,dive"`
}

type FeeTerms struct {
	DepositBps uint64 `json:"deposit_fee_bps"`
	ProfitBps  uint64 `json:"profit_fee_bps"`
	Source     string `json:"source"`
}

type TransferResult struct {
	Direction TransferDirection `json:"direction"`
	Token     string            `json:"token"`
	Amount    string            `json:"amount"`
	TxHash    string            `json:"tx_hash"`
}

type Transactions struct {
	AccountDeployment string           `json:"account_deployment,omitempty"`
	PermissionSetup   string           `json:"permission_setup,omitempty"`
	PermissionDigest  string           `json:"permission_digest,omitempty"`
	AssetTransfers    []TransferResult `json:"asset_transfers,omitempty"`
}

// OnboardResult is returned by onboarding and permission setup.
type OnboardResult struct {
	RunID           string       `json:"run_id"`
	Account         string       `json:"account"`
	Module          string       `json:"module,omitempty"`
	ModuleSaltNonce string       `json:"module_salt_nonce,omitempty"`
	FeeRouterProxy  string       `json:"fee_router_proxy,omitempty"`
	RoleKey         string       `json:"role_key,omitempty"`
	RoleMember      string       `json:"role_member,omitempty"`
	FeeTerms        *FeeTerms    `json:"fee_terms,omitempty"`
	Transactions    Transactions `json:"transactions"`
}

type ModulePrediction struct {
	Account    string `json:"account"`
	Module     string `json:"module"`
	Factory    string `json:"factory"`
	MasterCopy string `json:"master_copy"`
	SaltNonce  string `json:"salt_nonce"`
}
