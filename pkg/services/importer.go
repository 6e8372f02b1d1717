// Package services orchestrates the core subsystems: the import pipeline
// feeding the catalog store, and the library facade presentation layers
// call into.
package services

import (
	"fmt"
	"log/slog"
	"time"

	"flibrary/pkg/data"
	"flibrary/pkg/inpx"
	"flibrary/pkg/resolver"
)

// defaultBatchSize is how many records are buffered before one
// transactional insert.
const defaultBatchSize = 1000

// Catalog is the slice of the repository the importer needs.
type Catalog interface {
	SaveBooks(books []*data.Book) (int, error)
}

// ImportResult summarizes one dump import.
type ImportResult struct {
	Imported   int // rows inserted into the catalog
	Duplicates int // LibIDs the catalog already had
	Skipped    int // records without a numeric LibID
}

// Importer streams a metadata dump into the catalog, resolving archive
// locations per record on the way.
type Importer struct {
	catalog   Catalog
	resolver  *resolver.Resolver // nil disables location resolution
	logger    *slog.Logger
	batchSize int
}

// NewImporter wires an import pipeline. res may be nil when no archive root
// is available; records are then stored unresolved.
func NewImporter(catalog Catalog, res *resolver.Resolver, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		catalog:   catalog,
		resolver:  res,
		logger:    logger,
		batchSize: defaultBatchSize,
	}
}

// Run parses the dump at path and persists every resolvable record.
// Records without a numeric LibID are counted as skipped, never stored.
func (i *Importer) Run(path string, progress inpx.ProgressFunc) (ImportResult, error) {
	parser := &inpx.Parser{Progress: progress, Logger: i.logger}
	seq, err := parser.Parse(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("import %s: %w", path, err)
	}

	var result ImportResult
	buffer := make([]*data.Book, 0, i.batchSize)

	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}
		inserted, err := i.catalog.SaveBooks(buffer)
		if err != nil {
			return fmt.Errorf("store batch: %w", err)
		}
		result.Imported += inserted
		result.Duplicates += len(buffer) - inserted
		buffer = buffer[:0]
		return nil
	}

	for rec := range seq {
		if rec.LibID == nil {
			result.Skipped++
			continue
		}
		buffer = append(buffer, i.bookFromRecord(rec))
		if len(buffer) >= i.batchSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}
	if err := flush(); err != nil {
		return result, err
	}

	if n := parser.FallbackLines(); n > 0 {
		i.logger.Info("import used fallback decoding", "lines", n)
	}
	i.logger.Info("import finished",
		"imported", result.Imported,
		"duplicates", result.Duplicates,
		"skipped", result.Skipped)
	return result, nil
}

// bookFromRecord normalizes a parsed record into a catalog row, attaching
// the archive locations that claim its LibID.
func (i *Importer) bookFromRecord(rec inpx.Record) *data.Book {
	book := &data.Book{
		LibID:    *rec.LibID,
		Title:    rec.Title,
		Authors:  rec.Authors,
		Genres:   rec.Genres,
		Series:   rec.Series,
		FileStub: rec.FileStub,
		FileExt:  rec.FileExt,
		Folder:   rec.Folder,
		Lang:     rec.Lang,
		Deleted:  rec.Deleted,
	}
	if rec.SerNo != nil {
		book.SerNo = *rec.SerNo
	}
	if rec.Size != nil {
		book.Size = *rec.Size
	}
	if rec.Date != "" {
		if d, err := time.Parse("2006-01-02", rec.Date); err == nil {
			book.Date = d
		}
	}
	if i.resolver != nil {
		loc := i.resolver.Resolve(book.LibID)
		book.FB2Archive = loc.Book
		book.CoverArchive = loc.Cover
		book.ImagesArchive = loc.Images
	}
	return book
}
