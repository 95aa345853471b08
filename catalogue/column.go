package catalogue

import (
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"hareql.dev/column"
	"hareql.dev/page"
	"hareql.dev/value"
)

// ColumnDriver names which on-disk column layout backs a column,
// recorded alongside (name, type, path) in the entity's index.db per
// spec.md §6.
type ColumnDriver string

const (
	DriverFixed    ColumnDriver = "fixed"
	DriverVariable ColumnDriver = "variable"
)

// ColumnDef is the persisted metadata for one entity column.
type ColumnDef struct {
	Name       ColumnName   `json:"name"`
	Type       value.Type   `json:"type"`
	LogicalLen int          `json:"logical_len"`
	Nullable   bool         `json:"nullable"`
	Driver     ColumnDriver `json:"driver"`
	Path       string       `json:"path"`
}

// chooseDriver picks the fixed layout for everything but String,
// which only the variable (slotted-page) layout can hold.
func chooseDriver(t value.Type) ColumnDriver {
	if t == value.String {
		return DriverVariable
	}
	return DriverFixed
}

// columnHandle pairs an open column.File with the read/write latch
// spec.md §4.5 requires ("each column file holds a read/write latch
// (per-file, not per-page); the pool page latches are acquired
// beneath it").
type columnHandle struct {
	def   ColumnDef
	file  column.File
	latch sync.RWMutex
}

func createColumnFile(dir string, def ColumnDef, poolCapacity int, log *logrus.Entry) (column.File, error) {
	path := filepath.Join(dir, string(def.Name)+".hare")
	if def.Driver == DriverVariable {
		return column.CreateVariable(path, page.DefaultOptions(page.FileTypeColumnVariable), def.Type, def.Nullable, poolCapacity, log)
	}
	return column.CreateFixed(path, page.DefaultOptions(page.FileTypeColumnFixed), def.Type, def.LogicalLen, def.Nullable, poolCapacity, log)
}

func openColumnFile(dir string, def ColumnDef, poolCapacity int, log *logrus.Entry) (column.File, error) {
	path := filepath.Join(dir, string(def.Name)+".hare")
	if def.Driver == DriverVariable {
		return column.OpenVariable(path, page.DefaultOptions(page.FileTypeColumnVariable), poolCapacity, log)
	}
	return column.OpenFixed(path, page.DefaultOptions(page.FileTypeColumnFixed), poolCapacity, log)
}
