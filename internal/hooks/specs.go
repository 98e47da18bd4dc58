package hooks

import "github.com/upsguard/upsguard/internal/config"

// SpecsFromConfig converts the persisted/config-loaded hook entries into the
// Spec values the executor operates on.
func SpecsFromConfig(entries []config.HookConfigEntry) []Spec {
	specs := make([]Spec, 0, len(entries))
	for _, e := range entries {
		policy := OnFailureContinue
		if e.OnFailure == string(OnFailureAbort) {
			policy = OnFailureAbort
		}
		specs = append(specs, Spec{
			ID:                e.ID,
			DisplayName:       e.DisplayName,
			BackendID:         e.BackendID,
			Priority:          e.Priority,
			Enabled:           e.Enabled,
			OnFailure:         policy,
			TimeoutSeconds:    e.TimeoutSeconds,
			MaxRetries:        e.MaxRetries,
			RetryDelaySeconds: e.RetryDelaySeconds,
			Config:            e.Config,
		})
	}
	return specs
}
