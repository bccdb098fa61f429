package colour

import (
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// diseaseColour is one row of the disease_colours table.
type diseaseColour struct {
	Disease  string `gorm:"primaryKey;size:255"`
	Position int    `gorm:"not null;index"`
	R        int    `gorm:"not null"`
	G        int    `gorm:"not null"`
	B        int    `gorm:"not null"`
}

func (diseaseColour) TableName() string { return "disease_colours" }

// SQLStore keeps colours in a SQL database.
type SQLStore struct {
	db *gorm.DB
}

// OpenSQLStore opens (creating if needed) the SQLite database at path and
// migrates the colour table.
func OpenSQLStore(path string) (*SQLStore, error) {
	return openSQL(sqlite.Open(path))
}

// OpenMySQLStore connects to a MySQL server, e.g.
// "user:pass@tcp(127.0.0.1:3306)/promed?parseTime=true", so several servers
// can share one colour table.
func OpenMySQLStore(dsn string) (*SQLStore, error) {
	return openSQL(mysql.Open(dsn))
}

func openSQL(dialector gorm.Dialector) (*SQLStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open colour database")
	}
	if err := db.AutoMigrate(&diseaseColour{}); err != nil {
		return nil, errors.Wrap(err, "migrate colour database")
	}
	return &SQLStore{db: db}, nil
}

// Load reads every row in insertion order.
func (s *SQLStore) Load() (Table, error) {
	var rows []diseaseColour
	if err := s.db.Order("position").Find(&rows).Error; err != nil {
		return Table{}, errors.Wrap(err, "query colours")
	}
	out := Table{}.clone()
	for _, r := range rows {
		c := RGB{r.R, r.G, r.B}
		if !c.Valid() {
			return Table{}, errors.Errorf("colour of %q out of range", r.Disease)
		}
		out.set(r.Disease, c)
	}
	return out, nil
}

// Save replaces the stored table in a single transaction.
func (s *SQLStore) Save(t Table) error {
	rows := make([]diseaseColour, 0, t.Len())
	for i, e := range t.Entries() {
		rows = append(rows, diseaseColour{Disease: e.Label, Position: i, R: e.Colour[0], G: e.Colour[1], B: e.Colour[2]})
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&diseaseColour{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 200).Error
	})
	return errors.Wrap(err, "save colours")
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "colour database handle")
	}
	return sqlDB.Close()
}
