package helpers

import (
	"encoding/json"
	"fmt"
	"time"
)

// Distribution is a pulp-python distribution as listed by the Pulp API
type Distribution struct {
	Name     string `json:"name"`
	BasePath string `json:"base_path"`
	BaseURL  any    `json:"base_url,omitempty"`
}

// DistributionList is the body of the distribution listing
type DistributionList struct {
	Count    int            `json:"count"`
	Next     *string        `json:"next"`
	Previous *string        `json:"previous"`
	Results  []Distribution `json:"results"`
}

// NewDistribution creates a distribution whose base_url is base
func NewDistribution(name, base string) Distribution {
	return Distribution{Name: name, BasePath: name, BaseURL: base}
}

// DistributionsBody renders distributions as a listing body
func DistributionsBody(distributions ...Distribution) []byte {
	body, err := json.Marshal(DistributionList{Count: len(distributions), Results: distributions})
	if err != nil {
		panic(fmt.Sprintf("failed to marshal distributions: %v", err))
	}
	return body
}

// UniqueName generates a unique distribution name with a given prefix
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
