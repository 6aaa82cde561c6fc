package store

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteStore implements Store using GORM and SQLite.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (or creates) the database and migrates schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Rule{}, &ScanRecord{}); err != nil {
		return nil, err
	}

	db.Exec("CREATE INDEX IF NOT EXISTS idx_rules_date_added ON rules(date_added)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_scans_timestamp ON scan_records(timestamp)")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) InsertRule(rule *Rule) error {
	return s.db.Create(rule).Error
}

func (s *SQLiteStore) RuleExistsByName(name string) (bool, error) {
	var count int64
	err := s.db.Model(&Rule{}).Where("name = ?", name).Count(&count).Error
	return count > 0, err
}

func (s *SQLiteStore) ListRules(limit int) ([]Rule, error) {
	var rules []Rule
	err := s.db.Order("date_added DESC").Limit(limit).Find(&rules).Error
	return rules, err
}

func (s *SQLiteStore) CountRules() (int64, error) {
	var count int64
	err := s.db.Model(&Rule{}).Count(&count).Error
	return count, err
}

func (s *SQLiteStore) InsertScan(record *ScanRecord) error {
	return s.db.Create(record).Error
}

func (s *SQLiteStore) CountScans() (int64, error) {
	var count int64
	err := s.db.Model(&ScanRecord{}).Count(&count).Error
	return count, err
}

func (s *SQLiteStore) CountScansByStatus(status string) (int64, error) {
	var count int64
	err := s.db.Model(&ScanRecord{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
