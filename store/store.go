// Package store persists the results of a run in a SQLite database so that
// several runs and analyses can be queried together.
package store

import (
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/jmoiron/sqlx"
	"github.com/reefgenomics/symbiomisc/community"
	"github.com/reefgenomics/symbiomisc/dominance"
	"github.com/reefgenomics/symbiomisc/ordination"
	"github.com/reefgenomics/symbiomisc/permanova"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS sample (
	sample_id TEXT PRIMARY KEY,
	colony_id TEXT NOT NULL,
	host_genus TEXT NOT NULL,
	host_species TEXT NOT NULL,
	site TEXT NOT NULL,
	year INTEGER NOT NULL,
	read_count REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS dominance (
	analysis TEXT NOT NULL,
	sample_id TEXT NOT NULL,
	taxon TEXT NOT NULL,
	abundance REAL NOT NULL,
	defined BOOLEAN NOT NULL,
	PRIMARY KEY (analysis, sample_id)
);
CREATE TABLE IF NOT EXISTS colony_change (
	colony_id TEXT PRIMARY KEY,
	host_genus TEXT NOT NULL,
	host_species TEXT NOT NULL,
	years TEXT NOT NULL,
	dominant_groups TEXT NOT NULL,
	dominant_profiles TEXT NOT NULL,
	genus_changed BOOLEAN NOT NULL,
	profile_changed BOOLEAN NOT NULL,
	profile_changed_within TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS ordination (
	analysis TEXT NOT NULL,
	sample_id TEXT NOT NULL,
	axis1 REAL NOT NULL,
	axis2 REAL NOT NULL,
	stress REAL NOT NULL,
	low_confidence BOOLEAN NOT NULL,
	PRIMARY KEY (analysis, sample_id)
);
CREATE TABLE IF NOT EXISTS pairwise (
	batch TEXT NOT NULL,
	group_a TEXT NOT NULL,
	group_b TEXT NOT NULL,
	n_a INTEGER NOT NULL,
	n_b INTEGER NOT NULL,
	tested BOOLEAN NOT NULL,
	pseudo_f REAL NOT NULL,
	r2 REAL NOT NULL,
	p REAL NOT NULL,
	p_adjusted REAL NOT NULL,
	significant BOOLEAN NOT NULL,
	reason TEXT NOT NULL,
	PRIMARY KEY (batch, group_a, group_b)
);
`

type Store struct {
	DB *sqlx.DB
}

// Open connects to the database at path, creating it and its tables if
// needed. ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	memory := path == ":memory:"

	// URI filenames have to begin with 'file:'; see
	// https://www.sqlite.org/c3ref/open.html
	if !memory && !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	if memory {
		// Every connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, pfx.Err(err)
	}

	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// inTx runs f in a transaction, rolling back if it fails.
func (s *Store) inTx(f func(tx *sqlx.Tx) error) error {
	tx, err := s.DB.Beginx()
	if err != nil {
		return pfx.Err(err)
	}

	if err := f(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return pfx.Err(err)
	}

	return nil
}

func insertAll(tx *sqlx.Tx, query string, rows []interface{}) error {
	stmt, err := tx.PrepareNamed(query)
	if err != nil {
		return pfx.Err(err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.Exec(row); err != nil {
			return pfx.Err(err)
		}
	}

	return nil
}

// SaveSamples replaces the sample table.
func (s *Store) SaveSamples(meta community.Metadata) error {
	rows := make([]interface{}, 0, meta.Len())
	for _, sample := range meta.Samples() {
		rows = append(rows, sample)
	}

	return s.inTx(func(tx *sqlx.Tx) error {
		if _, err := tx.Exec("DELETE FROM sample"); err != nil {
			return pfx.Err(err)
		}
		return insertAll(tx, `INSERT INTO sample (sample_id, colony_id, host_genus, host_species, site, year, read_count)
			VALUES (:sample_id, :colony_id, :host_genus, :host_species, :site, :year, :read_count)`, rows)
	})
}

type DominanceRow struct {
	Analysis string `db:"analysis"`
	dominance.Assignment
}

// SaveDominance replaces the assignments stored under analysis.
func (s *Store) SaveDominance(analysis string, assignments []dominance.Assignment) error {
	rows := make([]interface{}, 0, len(assignments))
	for _, a := range assignments {
		rows = append(rows, DominanceRow{Analysis: analysis, Assignment: a})
	}

	return s.inTx(func(tx *sqlx.Tx) error {
		if _, err := tx.Exec("DELETE FROM dominance WHERE analysis = ?", analysis); err != nil {
			return pfx.Err(err)
		}
		return insertAll(tx, `INSERT INTO dominance (analysis, sample_id, taxon, abundance, defined)
			VALUES (:analysis, :sample_id, :taxon, :abundance, :defined)`, rows)
	})
}

type ChangeRow struct {
	ColonyID             string `db:"colony_id"`
	HostGenus            string `db:"host_genus"`
	HostSpecies          string `db:"host_species"`
	Years                string `db:"years"`
	Groups               string `db:"dominant_groups"`
	Profiles             string `db:"dominant_profiles"`
	GenusChanged         bool   `db:"genus_changed"`
	ProfileChanged       bool   `db:"profile_changed"`
	ProfileChangedWithin string `db:"profile_changed_within"`
}

// SaveChanges replaces the colony change table.
func (s *Store) SaveChanges(changes []dominance.ColonyChange) error {
	rows := make([]interface{}, 0, len(changes))
	for _, c := range changes {
		years := make([]string, 0, len(c.Years))
		for _, y := range c.Years {
			years = append(years, strconv.Itoa(y))
		}
		rows = append(rows, ChangeRow{
			ColonyID:             c.ColonyID,
			HostGenus:            c.HostGenus,
			HostSpecies:          c.HostSpecies,
			Years:                strings.Join(years, ","),
			Groups:               dominance.JoinStates(c.Groups),
			Profiles:             dominance.JoinStates(c.Profiles),
			GenusChanged:         c.GenusChanged,
			ProfileChanged:       c.ProfileChanged,
			ProfileChangedWithin: strings.Join(c.ProfileChangedWithin, ","),
		})
	}

	return s.inTx(func(tx *sqlx.Tx) error {
		if _, err := tx.Exec("DELETE FROM colony_change"); err != nil {
			return pfx.Err(err)
		}
		return insertAll(tx, `INSERT INTO colony_change (colony_id, host_genus, host_species, years, dominant_groups, dominant_profiles, genus_changed, profile_changed, profile_changed_within)
			VALUES (:colony_id, :host_genus, :host_species, :years, :dominant_groups, :dominant_profiles, :genus_changed, :profile_changed, :profile_changed_within)`, rows)
	})
}

type OrdinationRow struct {
	Analysis      string  `db:"analysis"`
	SampleID      string  `db:"sample_id"`
	Axis1         float64 `db:"axis1"`
	Axis2         float64 `db:"axis2"`
	Stress        float64 `db:"stress"`
	LowConfidence bool    `db:"low_confidence"`
}

// SaveOrdination replaces the coordinates stored under analysis. Only the
// first two axes are kept.
func (s *Store) SaveOrdination(analysis string, e ordination.Embedding) error {
	rows := make([]interface{}, 0, len(e.Labels))
	for i, label := range e.Labels {
		p := e.Point(i)
		row := OrdinationRow{
			Analysis:      analysis,
			SampleID:      label,
			Axis1:         p[0],
			Stress:        e.Stress,
			LowConfidence: e.LowConfidence,
		}
		if len(p) > 1 {
			row.Axis2 = p[1]
		}
		rows = append(rows, row)
	}

	return s.inTx(func(tx *sqlx.Tx) error {
		if _, err := tx.Exec("DELETE FROM ordination WHERE analysis = ?", analysis); err != nil {
			return pfx.Err(err)
		}
		return insertAll(tx, `INSERT INTO ordination (analysis, sample_id, axis1, axis2, stress, low_confidence)
			VALUES (:analysis, :sample_id, :axis1, :axis2, :stress, :low_confidence)`, rows)
	})
}

type PairwiseRow struct {
	Batch string `db:"batch"`
	permanova.PairResult
}

// SavePairwise replaces the pair results of one test batch.
func (s *Store) SavePairwise(batch string, results []permanova.PairResult) error {
	rows := make([]interface{}, 0, len(results))
	for _, r := range results {
		rows = append(rows, PairwiseRow{Batch: batch, PairResult: r})
	}

	return s.inTx(func(tx *sqlx.Tx) error {
		if _, err := tx.Exec("DELETE FROM pairwise WHERE batch = ?", batch); err != nil {
			return pfx.Err(err)
		}
		return insertAll(tx, `INSERT INTO pairwise (batch, group_a, group_b, n_a, n_b, tested, pseudo_f, r2, p, p_adjusted, significant, reason)
			VALUES (:batch, :group_a, :group_b, :n_a, :n_b, :tested, :pseudo_f, :r2, :p, :p_adjusted, :significant, :reason)`, rows)
	})
}
