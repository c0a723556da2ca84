// Package database opens the node's SQLite file.
//
// The node keeps exactly one fixed-layout record on flash (see package
// settings). There is deliberately no migration machinery: Columns lets the
// owner of a table detect a layout change and reset it to defaults.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: "./data/node.db", WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
package database
