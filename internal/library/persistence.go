package library

import (
	internalErrors "github.com/gcbaptista/librarian/internal/errors"
	"github.com/gcbaptista/librarian/internal/persistence"
)

// load reads the snapshot into the document store and feeds every visible
// document to the search engine. A missing snapshot means an empty library.
func (l *Library) load() error {
	if err := persistence.LoadJSON(l.snapshotPath, l.docs); err != nil {
		if isNotExist(err) {
			l.logger.Info("no snapshot found, starting empty library", "path", l.snapshotPath)
			return nil
		}
		return internalErrors.NewSnapshotError(l.snapshotPath, err)
	}

	for id, doc := range l.docs.Visible() {
		l.engine.Index(id, doc)
	}
	l.logger.Info("library loaded",
		"path", l.snapshotPath,
		"documents", l.docs.Live(),
		"assigned", l.docs.Len())
	return nil
}

// persist writes the whole document store to the snapshot file.
func (l *Library) persist() error {
	if err := persistence.SaveJSON(l.snapshotPath, l.docs); err != nil {
		l.logger.Error("failed to persist library", "path", l.snapshotPath, "error", err)
		return internalErrors.NewPersistError(l.snapshotPath, err)
	}
	return nil
}

// Save writes the snapshot again, typically after a mutation returned a
// PersistError.
func (l *Library) Save() error {
	return l.persist()
}
