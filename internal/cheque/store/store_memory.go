package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"chequeverify/internal/cheque/models"
	"chequeverify/pkg/domain"
	"chequeverify/pkg/platform/sentinel"
)

// InMemoryFetcher serves records from process memory, for local runs and tests.
type InMemoryFetcher struct {
	mu      sync.RWMutex
	records map[domain.ChequeNumber]models.Record
}

func NewInMemory() *InMemoryFetcher {
	return &InMemoryFetcher{records: make(map[domain.ChequeNumber]models.Record)}
}

// Put stores or replaces a record.
func (f *InMemoryFetcher) Put(rec models.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.ChequeNumber] = rec
}

func (f *InMemoryFetcher) Fetch(_ context.Context, number domain.ChequeNumber) (*models.Record, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rec, ok := f.records[number]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &rec, nil
}

func (f *InMemoryFetcher) Health(context.Context) error { return nil }

// Len returns the number of stored records.
func (f *InMemoryFetcher) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.records)
}

// LoadSeed reads a JSON array in the api wire format and stores every entry.
// Entries are validated the same way request input is.
func (f *InMemoryFetcher) LoadSeed(r io.Reader) error {
	var entries []models.ChequeData
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&entries); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}

	for i := range entries {
		rec, err := models.FromData(&entries[i])
		if err != nil {
			return fmt.Errorf("seed entry %d: %w", i, err)
		}
		f.Put(*rec)
	}
	return nil
}

// LoadSeedFile opens path and calls LoadSeed.
func (f *InMemoryFetcher) LoadSeedFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer file.Close()
	return f.LoadSeed(file)
}
