package store

import "time"

// Rule provenance tags. Closed set: adding a feed means adding a tag.
const (
	SourceCommunity   = "community-feed"
	SourcePulse       = "pulse-feed"
	SourceHash        = "hash-feed"
	SourceAIGenerated = "AI-generated"
	SourceManual      = "manual"
)

// Severity tiers, ordered Low < Medium < High < Critical.
const (
	SeverityLow      = "Low"
	SeverityMedium   = "Medium"
	SeverityHigh     = "High"
	SeverityCritical = "Critical"
)

// Scan statuses. StatusSuspicious is reserved for graded verdicts and
// is not produced by the current pipeline.
const (
	StatusSafe       = "SAFE"
	StatusMalicious  = "MALICIOUS"
	StatusSuspicious = "SUSPICIOUS"
	StatusError      = "ERROR"
)

// Rule is a named detection signature. Bodies are immutable once
// accepted; an update is a new rule under a new identifier.
type Rule struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	RuleID    string    `gorm:"uniqueIndex" json:"rule_id"`
	Name      string    `gorm:"index" json:"name"`
	Family    string    `json:"family"`
	Severity  string    `json:"severity"`
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	DateAdded time.Time `json:"date_added"`
}

// ScanRecord is the outcome of one detection request, append-only.
type ScanRecord struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	Filename      string    `json:"filename"`
	Filesize      int64     `json:"filesize"`
	Filetype      string    `json:"filetype"`
	Status        string    `gorm:"index" json:"status"`
	Confidence    int       `json:"confidence"`
	DetectedRules []string  `gorm:"serializer:json" json:"detected_rules"`
	Insight       string    `json:"ai_insight"`
	Timestamp     time.Time `json:"timestamp"`
}

// Stats are the aggregate counters served by the stats endpoint.
type Stats struct {
	TotalScans        int64 `json:"total_scans"`
	MaliciousDetected int64 `json:"malicious_detected"`
	ActiveRules       int64 `json:"active_rules"`
}
