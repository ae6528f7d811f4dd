// Package storage provides persistent history for drift detection runs.
// It uses BoltDB as the underlying storage engine to keep past drift
// reports and baseline feature statistics, with efficient time-range
// queries over the report history.
package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"driftwatch/internal/drift"
)

const (
	reportsBucket   = "reports"   // drift reports keyed by run timestamp
	baselinesBucket = "baselines" // baseline feature statistics snapshots
)

// baselineKey is the single slot holding the active baseline snapshot.
const baselineKey = "current"

// Store persists drift reports and baseline statistics using BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the database under dataPath and ensures the
// buckets exist.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "driftwatch.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(reportsBucket)); err != nil {
			return fmt.Errorf("create reports bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(baselinesBucket)); err != nil {
			return fmt.Errorf("create baselines bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// reportKey formats a run timestamp so keys sort chronologically.
func reportKey(ts time.Time) []byte {
	return []byte(fmt.Sprintf("%020d", ts.UnixNano()))
}

// SaveReport stores a drift report keyed by its generation timestamp.
func (s *Store) SaveReport(rep *drift.Report) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(reportsBucket))

		data, err := json.Marshal(rep)
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		return b.Put(reportKey(rep.GeneratedAt), data)
	})
}

// LatestReport returns the most recent stored report, or nil when the
// history is empty.
func (s *Store) LatestReport() (*drift.Report, error) {
	var rep *drift.Report

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(reportsBucket)).Cursor()
		k, v := c.Last()
		if k == nil {
			return nil
		}

		var r drift.Report
		if err := json.Unmarshal(v, &r); err != nil {
			return fmt.Errorf("unmarshal report: %w", err)
		}
		rep = &r
		return nil
	})
	return rep, err
}

// ReportsInRange returns the stored reports generated within [start, end],
// oldest first.
func (s *Store) ReportsInRange(start, end time.Time) ([]*drift.Report, error) {
	var reports []*drift.Report

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(reportsBucket)).Cursor()

		endKey := reportKey(end)
		for k, v := c.Seek(reportKey(start)); k != nil && string(k) <= string(endKey); k, v = c.Next() {
			var r drift.Report
			if err := json.Unmarshal(v, &r); err != nil {
				continue // skip malformed records
			}
			reports = append(reports, &r)
		}
		return nil
	})
	return reports, err
}

// SaveBaselineStats replaces the active baseline feature statistics.
func (s *Store) SaveBaselineStats(stats map[string]drift.FeatureStats) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(baselinesBucket))

		data, err := json.Marshal(stats)
		if err != nil {
			return fmt.Errorf("marshal baseline stats: %w", err)
		}
		return b.Put([]byte(baselineKey), data)
	})
}

// LoadBaselineStats returns the active baseline statistics, or nil when no
// baseline has been saved yet.
func (s *Store) LoadBaselineStats() (map[string]drift.FeatureStats, error) {
	var stats map[string]drift.FeatureStats

	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(baselinesBucket)).Get([]byte(baselineKey))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &stats)
	})
	return stats, err
}
