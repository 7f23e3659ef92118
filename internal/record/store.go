// Package record persists tax estimates.
package record

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dnswd/cukai"
)

// Store appends and lists saved estimates. ReadAll returns nil, nil when
// nothing has been stored yet.
type Store interface {
	Append(ctx context.Context, r cukai.Record) error
	ReadAll(ctx context.Context) ([]cukai.Record, error)
	Close() error
}

// ErrMalformed wraps rows that cannot be decoded.
var ErrMalformed = errors.New("malformed record")

func parseRow(row map[string]string) (cukai.Record, error) {
	r := cukai.Record{
		UserID:   row[cukai.FieldUserID],
		ICNumber: row[cukai.FieldICNumber],
	}
	for _, f := range []struct {
		name string
		dst  *cukai.Money
	}{
		{cukai.FieldIncome, &r.Income},
		{cukai.FieldTaxRelief, &r.TaxRelief},
		{cukai.FieldTaxPayable, &r.TaxPayable},
	} {
		m, err := cukai.ParseMoney(row[f.name])
		if err != nil {
			return cukai.Record{}, fmt.Errorf("%w: %s %q: %v", ErrMalformed, f.name, row[f.name], err)
		}
		*f.dst = m
	}
	return r, nil
}

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	data []cukai.Record
	mu   sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, r cukai.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = append(s.data, r)
	return nil
}

func (s *MemoryStore) ReadAll(ctx context.Context) ([]cukai.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.data) == 0 {
		return nil, nil
	}
	return append([]cukai.Record(nil), s.data...), nil
}

func (s *MemoryStore) Close() error { return nil }
