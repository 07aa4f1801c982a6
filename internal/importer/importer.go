// Package importer turns payment exports into payments. Every input row
// yields a RowResult; bad rows are reported and skipped, only unreadable
// input or a failing store aborts a run.
package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dues-dev/dues/internal/model"
)

// Store is the part of the store the importers need.
type Store interface {
	FindMembersByName(ctx context.Context, first, last string, caseSensitive bool) ([]model.Member, error)
	FindPaymentMethodByName(ctx context.Context, name string) (model.PaymentMethod, error)
	FindPaymentMethods(ctx context.Context) ([]model.PaymentMethod, error)
	PaymentExists(ctx context.Context, memberID uuid.UUID, date time.Time, amount decimal.Decimal) (bool, error)
	CreatePayment(ctx context.Context, p *model.Payment) error
}

// Source is one input file.
type Source struct {
	Name   string    // recorded as the payments' original file
	Reader io.Reader // semicolon-separated rows, no header
	Date   time.Time // payment date for formats that carry none
}

// Importer reads one export format.
type Importer interface {
	Format() string
	Import(ctx context.Context, src Source) (*Report, error)
}

// Registry holds importers by format name.
type Registry struct {
	importers map[string]Importer
}

// NewRegistry creates an empty importer registry.
func NewRegistry() *Registry {
	return &Registry{importers: make(map[string]Importer)}
}

// Register adds an importer. Panics on duplicate format.
func (r *Registry) Register(imp Importer) {
	key := strings.ToLower(imp.Format())
	if _, ok := r.importers[key]; ok {
		panic("duplicate importer format: " + key)
	}
	r.importers[key] = imp
}

// Get returns the importer for format, or nil.
func (r *Registry) Get(format string) Importer {
	return r.importers[strings.ToLower(format)]
}

// Formats lists the registered format names, sorted.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.importers))
	for k := range r.importers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Config configures the built-in importers.
type Config struct {
	SmallFileMethod string
	Bulk            BulkConfig
}

// DefaultConfig returns the settings of the association's legacy exports.
func DefaultConfig() Config {
	return Config{
		SmallFileMethod: model.MethodBankCollection,
		Bulk:            DefaultBulkConfig(),
	}
}

// DefaultRegistry returns a registry with the small, generic and bulk
// importers writing to s.
func DefaultRegistry(s Store, cfg Config, opts ...Option) *Registry {
	r := NewRegistry()
	r.Register(NewSmallFile(s, cfg.SmallFileMethod, opts...))
	r.Register(NewGeneric(s, opts...))
	r.Register(NewBulk(s, cfg.Bulk, opts...))
	return r
}

// FileInfo describes a file waiting in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// processedDir is where imported files are moved, inside the import dir.
const processedDir = "processed"

// Scan returns the CSV files in dir. A missing dir has no files.
func Scan(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from dir to dir/processed.
func MarkProcessed(dir, fileName string) error {
	src := filepath.Join(dir, fileName)
	dstDir := filepath.Join(dir, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
