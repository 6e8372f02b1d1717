package services

import (
	"errors"
	"fmt"
	"log/slog"

	"flibrary/pkg/assembler"
	"flibrary/pkg/config"
	"flibrary/pkg/data"
	"flibrary/pkg/inpx"
	"flibrary/pkg/resolver"
)

// Library is the facade presentation layers call: it owns the catalog
// connection and hands out the parse/resolve/assemble operations.
type Library struct {
	cfg    *config.Config
	repo   *data.Repository
	res    *resolver.Resolver // built lazily, only commands touching archives need it
	asm    *assembler.Assembler
	logger *slog.Logger
}

// Open connects the catalog store. The archive root is not touched until an
// operation needs it.
func Open(cfg *config.Config, logger *slog.Logger) (*Library, error) {
	if logger == nil {
		logger = slog.Default()
	}
	repo, err := data.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	return &Library{
		cfg:    cfg,
		repo:   repo,
		asm:    &assembler.Assembler{Logger: logger},
		logger: logger,
	}, nil
}

// Close releases the catalog connection.
func (l *Library) Close() error { return l.repo.Close() }

// Resolver returns the archive-range index, building it on first use.
func (l *Library) Resolver() (*resolver.Resolver, error) {
	if l.res == nil {
		res, err := resolver.New(l.cfg.LibraryRoot)
		if err != nil {
			return nil, err
		}
		books, covers, images := res.Len()
		l.logger.Debug("archive index built",
			"root", l.cfg.LibraryRoot,
			"books", books, "covers", covers, "images", images)
		l.res = res
	}
	return l.res, nil
}

// Import parses the dump and fills the catalog. When the archive root is
// missing the records are stored unresolved rather than failing the import.
func (l *Library) Import(dumpPath string, progress inpx.ProgressFunc) (ImportResult, error) {
	res, err := l.Resolver()
	if err != nil {
		if !errors.Is(err, resolver.ErrNotFound) {
			return ImportResult{}, err
		}
		l.logger.Warn("archive root missing, importing without locations",
			"root", l.cfg.LibraryRoot)
		res = nil
	}
	return NewImporter(l.repo, res, l.logger).Run(dumpPath, progress)
}

// Fetch assembles the complete document for one catalog entry.
func (l *Library) Fetch(libID int) ([]byte, error) {
	book, err := l.repo.GetBook(libID)
	if err != nil {
		return nil, err
	}
	out, err := l.asm.Assemble(book)
	if err != nil {
		return nil, fmt.Errorf("assemble book %d: %w", libID, err)
	}
	return out, nil
}

// Search queries the catalog by title, author or series.
func (l *Library) Search(query string) ([]*data.Book, error) {
	return l.repo.SearchBooks(query)
}

// List returns up to limit catalog entries.
func (l *Library) List(limit int) ([]*data.Book, error) {
	return l.repo.ListBooks(limit)
}

// Count reports the catalog size.
func (l *Library) Count() (int64, error) {
	return l.repo.CountBooks()
}
