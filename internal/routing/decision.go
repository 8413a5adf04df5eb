// Package routing decides which recommendation path a reader's request takes.
package routing

// Path is the recommendation path for a request.
type Path string

const (
	PathCatalog  Path = "CATALOG"
	PathWorld    Path = "WORLD"
	PathTemporal Path = "TEMPORAL"
	PathHybrid   Path = "HYBRID"
)

// UsesCatalog reports whether the path grounds the prompt in the curated shortlist.
func (p Path) UsesCatalog() bool {
	return p == PathCatalog || p == PathHybrid
}

// Valid reports whether p is one of the known paths.
func (p Path) Valid() bool {
	switch p {
	case PathCatalog, PathWorld, PathTemporal, PathHybrid:
		return true
	}
	return false
}

// Confidence is the catalog-similarity bucket assigned by the probe.
type Confidence string

const (
	ConfidenceNone   Confidence = "none"
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Stage names the step that produced a decision.
type Stage string

const (
	StagePrefilter Stage = "prefilter"
	StageProbe     Stage = "probe"
)

// Decision reasons.
const (
	ReasonNewAuthorPattern = "new_author_pattern"
	ReasonTemporalKeyword  = "temporal_keyword"
	ReasonWorldKeyword     = "world_keyword"
	ReasonOutsideCatalog   = "specific_topic_outside_catalog"
	ReasonCatalogKeyword   = "catalog_keyword"
	ReasonNoKeywordMatch   = "no_keyword_match"
	ReasonHighConfidence   = "catalog_high_confidence"
	ReasonMediumConfidence = "catalog_medium_confidence"
	ReasonLowConfidence    = "catalog_low_confidence"
	ReasonNoCatalogMatch   = "no_catalog_match"
	ReasonProbeFailed      = "probe_failed"
	ReasonProbeUnavailable = "probe_unavailable"
)

// Decision is the outcome of routing one request.
type Decision struct {
	Path          Path       `json:"path"`
	Reason        string     `json:"reason"`
	Confidence    Confidence `json:"confidence"`
	Stage         Stage      `json:"stage"`
	TopSimilarity float64    `json:"top_similarity,omitempty"`
	Cached        bool       `json:"cached,omitempty"`
}
