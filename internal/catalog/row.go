package catalog

import (
	"fmt"

	"github.com/hyperjump/osusume/internal/models"
)

// Row is a row index bound to the snapshot that issued it. The zero Row is
// bound to no snapshot and is rejected everywhere.
type Row struct {
	snapshotID string
	index      int
}

// Index returns the row position within its snapshot.
func (r Row) Index() int { return r.index }

// SnapshotID returns the ID of the snapshot that issued the row.
func (r Row) SnapshotID() string { return r.snapshotID }

// String implements fmt.Stringer.
func (r Row) String() string {
	return fmt.Sprintf("row %d@%s", r.index, r.snapshotID)
}

// BindRow creates a handle for index i of the snapshot with the given ID. It is
// meant for derived structures that recreate handles for rows of the snapshot
// they were built from; bounds are not checked.
func BindRow(snapshotID string, i int) Row {
	return Row{snapshotID: snapshotID, index: i}
}

// CheckRow verifies that row belongs to snapshotID and lies in [0, n).
func CheckRow(row Row, snapshotID string, n int) error {
	if row.snapshotID != snapshotID {
		return fmt.Errorf("%w: %s used with snapshot %s", models.ErrSnapshotMismatch, row, snapshotID)
	}
	if row.index < 0 || row.index >= n {
		return fmt.Errorf("%w: row %d outside [0, %d)", models.ErrNotFound, row.index, n)
	}
	return nil
}
