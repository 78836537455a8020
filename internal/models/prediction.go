// internal/models/prediction.go
package models

// Direction is the published signal for a pair.
type Direction string

const (
	DirectionUp      Direction = "UP"
	DirectionDown    Direction = "DOWN"
	DirectionAbstain Direction = "ABSTAIN"
)

// PredictionItem is one pair's entry in the latest-predictions response.
// A pair whose artifact is missing or malformed is published as an
// ABSTAIN placeholder with zero confidence.
type PredictionItem struct {
	Pair        string    `json:"pair"`
	PairLabel   string    `json:"pair_label"`
	Direction   Direction `json:"direction"`
	Confidence  float64   `json:"confidence"`
	PUp         float64   `json:"p_up"`
	GeneratedAt string    `json:"generated_at,omitempty"`
	ObsDate     string    `json:"obs_date,omitempty"`
	Model       string    `json:"model,omitempty"`
	Available   bool      `json:"available"`
}

// ManifestMetadata describes the prediction run the artifacts belong to.
type ManifestMetadata struct {
	Horizon  string `json:"horizon"`
	AsOfUTC  string `json:"as_of_utc"`
	RunDate  string `json:"run_date"`
	Timezone string `json:"timezone,omitempty"`
	GitSHA   string `json:"git_sha,omitempty"`
}

// PredictionsSnapshot is the assembled read-model served to clients.
type PredictionsSnapshot struct {
	Metadata    ManifestMetadata `json:"metadata"`
	Predictions []PredictionItem `json:"predictions"`
}
