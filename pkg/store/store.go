package store

// Store is the persistence boundary: two append-only collections,
// rules and scans. Implementations must be safe for concurrent use.
type Store interface {
	InsertRule(rule *Rule) error
	RuleExistsByName(name string) (bool, error)
	ListRules(limit int) ([]Rule, error)
	CountRules() (int64, error)

	InsertScan(record *ScanRecord) error
	CountScans() (int64, error)
	CountScansByStatus(status string) (int64, error)

	Close() error
}
