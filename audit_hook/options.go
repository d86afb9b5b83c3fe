package audithook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets the logger for the extension.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) {
		e.logger = logger
	}
}

// WithEnabledActions restricts auditing to the given actions.
// Without any filter option every action is audited.
func WithEnabledActions(actions ...string) Option {
	return func(e *Extension) {
		e.enabled = make(map[string]bool, len(actions))
		for _, action := range actions {
			e.enabled[action] = true
		}
	}
}

// WithCategories restricts auditing to the actions of the given categories,
// e.g. CategoryGovernance for fee and airdrop-rate changes only.
func WithCategories(categories ...string) Option {
	return func(e *Extension) {
		want := make(map[string]bool, len(categories))
		for _, c := range categories {
			want[c] = true
		}
		e.enabled = make(map[string]bool)
		for action, category := range actionCategories {
			if want[category] {
				e.enabled[action] = true
			}
		}
	}
}

// WithDisabledActions skips the given actions. Applied after an enabling
// option it narrows that set further.
func WithDisabledActions(actions ...string) Option {
	return func(e *Extension) {
		if e.enabled == nil {
			e.enabled = make(map[string]bool, len(actionCategories))
			for action := range actionCategories {
				e.enabled[action] = true
			}
		}
		for _, action := range actions {
			delete(e.enabled, action)
		}
	}
}

// actionCategories maps every known action to the category it is filed under.
var actionCategories = map[string]string{
	ActionPoolInitialized:    CategoryVesting,
	ActionBeneficiariesAdded: CategoryVesting,
	ActionBeneficiaryRemoved: CategoryVesting,
	ActionVestingReleased:    CategoryVesting,
	ActionStaked:             CategoryStaking,
	ActionStakeWithdrawn:     CategoryStaking,
	ActionAirdropStarted:     CategoryAirdrop,
	ActionAirdropClaimed:     CategoryAirdrop,
	ActionFeeChanged:         CategoryGovernance,
	ActionTransferFailed:     CategoryToken,
}
