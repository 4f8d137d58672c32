package core

import "time"

// Resurrection status values as they appear on the wire.
const (
	StatusPending  = "summoning"
	StatusComplete = "complete"
)

// Completion modes. Deferred mirrors the long-running server, immediate the
// serverless deployment that answers with a finished record.
const (
	CompletionDeferred  = "deferred"
	CompletionImmediate = "immediate"
)

// Snapshot rendering variants for derived archive URLs.
const (
	// VariantWrapped renders the capture inside the archive toolbar.
	VariantWrapped = "wrapped"
	// VariantIdentity asks the archive for the unmodified capture.
	VariantIdentity = "identity"
)

// Upstream defaults
const (
	DefaultCDXEndpoint     = "http://web.archive.org/cdx/search/cdx"
	DefaultSnapshotBaseURL = "http://web.archive.org/web"
	DefaultSnapshotLimit   = 10
	DefaultUpstreamTimeout = 15 * time.Second
)

// Resurrection defaults
const (
	DefaultCompletionDelay  = 3 * time.Second
	ResponseSnapshotCount   = 5
	DefaultResourceTimeout  = 10 * time.Second
	DefaultCaptureTimeout   = 35 * time.Second
	DefaultNetworkIdleDelay = 500 * time.Millisecond
)

// Resource limits
const (
	MaxResourceSize = 5 * 1024 * 1024 // 5MB
)

// HTTP client configuration
const (
	UserAgent = "Mozilla/5.0 (compatible; echoes/1.0)"
)
