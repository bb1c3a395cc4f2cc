// Package records is the Local Store: durable per-device storage of entity
// records with their sync metadata.
//
// Two implementations share the Repository contract: SQLiteRepository over
// any dbx.DBTX (a *sql.DB or a *sql.Tx) and FileRepository over a filedb
// executor. Lookups of missing rows return (nil, nil); writes that must touch
// more than one row run in a transaction of their own unless the repository
// is already bound to one.
package records
