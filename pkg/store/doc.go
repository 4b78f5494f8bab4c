/*
Package store keeps template sources and render datasets in a SQLite
database.

Templates are stored as text and datasets as canonical CBOR snapshots of a
data tree. A Store is a resource loader and can list its templates, so an
engine can render straight out of the database:

	db, _ := sql.Open("sqlite3", "quicksilver.db")
	_ = store.SetupSchema(db)
	s, _ := store.New(db)
	e, _ := engine.New(logger, s, nil)

The package does not import a driver. Callers pick one, either
github.com/mattn/go-sqlite3 or modernc.org/sqlite.
*/
package store
