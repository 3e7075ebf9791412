package models

import "fmt"

// ComparisonResult is the only value that leaves the engine.
type ComparisonResult struct {
	Similarity      string          `json:"similarity" yaml:"similarity"`
	Message         string          `json:"message" yaml:"message"`
	ComparisonImage string          `json:"comparison_image" yaml:"comparison_image"`
	Score           float64         `json:"score" yaml:"score"`
	Regions         []RegionVerdict `json:"regions" yaml:"regions"`
	Width           int             `json:"width" yaml:"width"`
	Height          int             `json:"height" yaml:"height"`
	Threshold       uint8           `json:"threshold" yaml:"threshold"`
}

// FormatSimilarity renders a global score as a percentage with two decimals.
func FormatSimilarity(score float64) string {
	return fmt.Sprintf("%.2f", score*100)
}

// SimilarityMessage builds the human readable sentence for a percentage.
func SimilarityMessage(percentage string) string {
	return fmt.Sprintf("The images are %s%% similar based on structural similarity.", percentage)
}

// NewComparisonResult packages the score and artifact reference.
func NewComparisonResult(score float64, artifact string, verdicts []RegionVerdict) *ComparisonResult {
	percentage := FormatSimilarity(score)
	if verdicts == nil {
		verdicts = []RegionVerdict{}
	}
	return &ComparisonResult{
		Similarity:      percentage,
		Message:         SimilarityMessage(percentage),
		ComparisonImage: artifact,
		Score:           score,
		Regions:         verdicts,
	}
}
