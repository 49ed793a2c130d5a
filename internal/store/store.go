package store

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"

	"packtrack/internal/models"
)

// Table file names inside the data directory. They match the dashboard's
// existing data layout, so an old data directory loads as-is.
const (
	MaterialsTable = "packing_materials.csv"
	PurchasesTable = "packing_materials_purchase_history.csv"
	LinksTable     = "recipe_packing_materials.csv"
	UsageTable     = "packing_materials_usage_history.csv"
)

// Store persists the four packing-materials tables as flat CSV files, one
// file per table with a header row of named fields. Every save rewrites the
// whole table; a per-table mutex serializes writers so overlapping saves
// cannot interleave on the file.
type Store struct {
	dir  string
	muxs map[string]*sync.Mutex
	log  *logrus.Entry
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string, log *logrus.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &models.PersistenceError{Table: "data_dir", Err: err}
	}
	return &Store{
		dir: dir,
		muxs: map[string]*sync.Mutex{
			MaterialsTable: {},
			PurchasesTable: {},
			LinksTable:     {},
			UsageTable:     {},
		},
		log: log.WithField("component", "store"),
	}, nil
}

// Dir returns the data directory the store writes into.
func (s *Store) Dir() string {
	return s.dir
}

// loadTable reads a whole table into out (a pointer to a slice of records).
// A missing file is not an error: the table is simply empty on first run.
func (s *Store) loadTable(table string, out interface{}) error {
	s.muxs[table].Lock()
	defer s.muxs[table].Unlock()

	path := filepath.Join(s.dir, table)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &models.PersistenceError{Table: table, Err: err}
	}
	defer f.Close()

	if err := gocsv.UnmarshalFile(f, out); err != nil {
		return &models.PersistenceError{Table: table, Err: err}
	}
	return nil
}

// saveTable rewrites a whole table from in (a slice of records). The write
// goes to a temp file first and is renamed into place so a crash mid-write
// never leaves a truncated table behind.
func (s *Store) saveTable(table string, in interface{}) error {
	s.muxs[table].Lock()
	defer s.muxs[table].Unlock()

	path := filepath.Join(s.dir, table)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return &models.PersistenceError{Table: table, Err: err}
	}

	if err := gocsv.MarshalFile(in, f); err != nil {
		f.Close()
		os.Remove(tmp)
		return &models.PersistenceError{Table: table, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &models.PersistenceError{Table: table, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &models.PersistenceError{Table: table, Err: err}
	}

	s.log.WithField("table", table).Debug("table saved")
	return nil
}

// LoadMaterials reads the material catalog table.
func (s *Store) LoadMaterials() ([]models.Material, error) {
	var rows []models.Material
	if err := s.loadTable(MaterialsTable, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// SaveMaterials rewrites the material catalog table.
func (s *Store) SaveMaterials(rows []models.Material) error {
	return s.saveTable(MaterialsTable, &rows)
}

// LoadPurchases reads the purchase history table.
func (s *Store) LoadPurchases() ([]models.PurchaseRecord, error) {
	var rows []models.PurchaseRecord
	if err := s.loadTable(PurchasesTable, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// SavePurchases rewrites the purchase history table.
func (s *Store) SavePurchases(rows []models.PurchaseRecord) error {
	return s.saveTable(PurchasesTable, &rows)
}

// LoadLinks reads the recipe-material association table.
func (s *Store) LoadLinks() ([]models.RecipeMaterialLink, error) {
	var rows []models.RecipeMaterialLink
	if err := s.loadTable(LinksTable, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// SaveLinks rewrites the recipe-material association table.
func (s *Store) SaveLinks(rows []models.RecipeMaterialLink) error {
	return s.saveTable(LinksTable, &rows)
}

// LoadUsage reads the usage history table.
func (s *Store) LoadUsage() ([]models.UsageRecord, error) {
	var rows []models.UsageRecord
	if err := s.loadTable(UsageTable, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// SaveUsage rewrites the usage history table.
func (s *Store) SaveUsage(rows []models.UsageRecord) error {
	return s.saveTable(UsageTable, &rows)
}
