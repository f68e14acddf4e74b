// Package database provides the SQLite connection backing the state store.
//
// Open configures WAL mode, the busy timeout and a single-connection pool.
// Migrate applies the embedded *.up.sql files registered by the migrations
// package; schema changes are additive only, so there are no down steps.
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
