package dto

// MaxModeRequest toggles pay-as-you-go overage.
type MaxModeRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// MaxModeResponse reflects the stored toggle after the update.
type MaxModeResponse struct {
	Tier           string `json:"tier"`
	MaxModeEnabled bool   `json:"max_mode_enabled"`
}
