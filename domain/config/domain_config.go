package config

import "time"

// DomainConfig holds the tunable rules of the graph engine
type DomainConfig struct {
	// Graph constraints
	MaxNodesPerGraph    int
	MaxBulletsPerAnswer int
	MaxItemsPerSources  int

	// Layout offsets, relative to the parent node
	AnswerOffsetX   float64
	AnswerOffsetY   float64
	FollowUpOffsetX float64
	FollowUpSpreadX float64
	FollowUpOffsetY float64
	SourcesOffsetX  float64
	SourcesSpreadY  float64

	// Root queries are scattered in [RootMinX, RootMinX+RootSpanX) x [RootMinY, RootMinY+RootSpanY)
	RootMinX  float64
	RootSpanX float64
	RootMinY  float64
	RootSpanY float64

	// Materialization
	MaterializeDelay       time.Duration
	MaxMaterializeAttempts int
	RetryInitialInterval   time.Duration
	RetryMaxInterval       time.Duration
	AnswerTimeout          time.Duration

	// Sources lookup
	SearchTimeout time.Duration
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxNodesPerGraph:    10000,
		MaxBulletsPerAnswer: 64,
		MaxItemsPerSources:  50,

		AnswerOffsetX:   -20,
		AnswerOffsetY:   150,
		FollowUpOffsetX: 40,
		FollowUpSpreadX: 60,
		FollowUpOffsetY: 200,
		SourcesOffsetX:  320,
		SourcesSpreadY:  40,

		RootMinX:  100,
		RootSpanX: 400,
		RootMinY:  50,
		RootSpanY: 200,

		MaterializeDelay:       500 * time.Millisecond,
		MaxMaterializeAttempts: 3,
		RetryInitialInterval:   250 * time.Millisecond,
		RetryMaxInterval:       4 * time.Second,
		AnswerTimeout:          30 * time.Second,

		SearchTimeout: 10 * time.Second,
	}
}
