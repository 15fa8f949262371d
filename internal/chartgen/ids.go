package chartgen

import (
	"strings"

	"github.com/google/uuid"
)

const (
	requestIDPrefix = "req_"
	chartIDPrefix   = "chart_"

	// artifactURIScheme is the storage scheme saved charts are addressed
	// under, matching the tracking server's artifact proxy layout.
	artifactURIScheme = "mlflow-artifacts:/charts/"
)

// NewRequestID returns a fresh generation request id ("req_" + UUIDv4).
func NewRequestID() string {
	return requestIDPrefix + uuid.NewString()
}

// NewChartID returns a fresh saved chart id ("chart_" + UUIDv4).
func NewChartID() string {
	return chartIDPrefix + uuid.NewString()
}

// ValidRequestID reports whether id has the documented request id form.
func ValidRequestID(id string) bool {
	rest, ok := strings.CutPrefix(id, requestIDPrefix)
	if !ok {
		return false
	}
	return uuid.Validate(rest) == nil
}

// ValidChartID reports whether id has the documented chart id form.
func ValidChartID(id string) bool {
	rest, ok := strings.CutPrefix(id, chartIDPrefix)
	if !ok {
		return false
	}
	return uuid.Validate(rest) == nil
}

// ArtifactURI returns the artifact location for a saved chart id.
func ArtifactURI(chartID string) string {
	return artifactURIScheme + chartID
}
