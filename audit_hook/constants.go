package audithook

// Action constants for audit events.
const (
	// Vesting actions
	ActionPoolInitialized    = "pool.initialized"
	ActionBeneficiariesAdded = "beneficiaries.added"
	ActionBeneficiaryRemoved = "beneficiary.removed"
	ActionVestingReleased    = "vesting.released"

	// Staking actions
	ActionStaked         = "stake.opened"
	ActionStakeWithdrawn = "stake.withdrawn"

	// Airdrop actions
	ActionAirdropStarted = "airdrop.started"
	ActionAirdropClaimed = "airdrop.claimed"

	// Fee actions
	ActionFeeChanged = "fee.changed"

	// Token actions
	ActionTransferFailed = "transfer.failed"
)

// Resource constants for audit events.
const (
	ResourcePool     = "pool"
	ResourceSchedule = "schedule"
	ResourcePosition = "position"
	ResourceAirdrop  = "airdrop"
	ResourceFee      = "fee"
	ResourceTransfer = "transfer"
)

// Category constants for audit events.
const (
	CategoryVesting    = "vesting"
	CategoryStaking    = "staking"
	CategoryAirdrop    = "airdrop"
	CategoryGovernance = "governance"
	CategoryToken      = "token"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
