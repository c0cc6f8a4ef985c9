// Package ledger records accepted submissions, one per (module, group), and
// serializes them as the flat CSV file administrators export.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	ErrDuplicate       = errors.New("submission already recorded")
	ErrMalformed       = errors.New("malformed ledger")
	ErrIndexOutOfRange = errors.New("record index out of range")
)

type Record struct {
	Timestamp       time.Time `json:"timestamp"`
	Module          string    `json:"module"`
	GroupNumber     string    `json:"groupnumber"`
	IncludedFigures bool      `json:"included_figures"`
}

type Key struct {
	Module string
	Group  string
}

func (r Record) Key() Key { return Key{Module: r.Module, Group: r.GroupNumber} }

// Same reports whether r and o are the same ledger row.
func (r Record) Same(o Record) bool {
	return r.Key() == o.Key() && r.Timestamp.Equal(o.Timestamp)
}

func (k Key) String() string { return fmt.Sprintf("module %q, group %q", k.Module, k.Group) }

// Store is the ledger contract shared by the CSV file and the Postgres table.
type Store interface {
	Load(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, records []Record) error
	HasSubmitted(ctx context.Context, group, module string) (bool, error)
	// Append fails with ErrDuplicate when the key is already present at write time.
	Append(ctx context.Context, module, group string, includedFigures bool) (Record, error)
	DeleteByIndex(ctx context.Context, i int) (Record, error)
	// DeleteRecord removes the row matching rec's key and timestamp and
	// reports whether it was still there.
	DeleteRecord(ctx context.Context, rec Record) (bool, error)
	// DeleteByKey removes every record of group; an empty module matches all modules.
	DeleteByKey(ctx context.Context, group, module string) (int, error)
	Clear(ctx context.Context) error
}

// Export writes the whole ledger in the storage serialization.
func Export(ctx context.Context, s Store, w io.Writer) error {
	records, err := s.Load(ctx)
	if err != nil {
		return err
	}
	return Encode(w, records)
}

func contains(records []Record, k Key) bool {
	for _, r := range records {
		if r.Key() == k {
			return true
		}
	}
	return false
}

func filterOut(records []Record, group, module string) ([]Record, int) {
	kept := make([]Record, 0, len(records))
	for _, r := range records {
		if r.GroupNumber == group && (module == "" || r.Module == module) {
			continue
		}
		kept = append(kept, r)
	}
	return kept, len(records) - len(kept)
}
