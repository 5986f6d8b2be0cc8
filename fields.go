package formstate

import "github.com/zoobzio/capitan"

// Field keys for controller events.
var (
	// KeyEpoch is the id of the current initialization epoch.
	KeyEpoch = capitan.NewStringKey("epoch")

	// KeySubmission is the id of a single submit attempt.
	KeySubmission = capitan.NewStringKey("submission")

	// KeyField is a field name.
	KeyField = capitan.NewStringKey("field")

	// KeyFields is the number of fields touched by a change batch.
	KeyFields = capitan.NewIntKey("fields")

	// KeyError is an error or validation message.
	KeyError = capitan.NewStringKey("error")

	// KeyReason is why a submission was refused.
	KeyReason = capitan.NewStringKey("reason")

	// KeyOldState is the previous submission state.
	KeyOldState = capitan.NewStringKey("old_state")

	// KeyNewState is the new submission state.
	KeyNewState = capitan.NewStringKey("new_state")

	// KeyOldEligibility is the previous save verdict.
	KeyOldEligibility = capitan.NewStringKey("old_eligibility")

	// KeyNewEligibility is the new save verdict.
	KeyNewEligibility = capitan.NewStringKey("new_eligibility")

	// KeyOverride is the manual override value.
	KeyOverride = capitan.NewStringKey("override")

	// KeyDuration is how long a save invocation took.
	KeyDuration = capitan.NewDurationKey("duration")
)
