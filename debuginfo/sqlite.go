package debuginfo

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS types (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	kind TEXT NOT NULL,
	size INTEGER NOT NULL DEFAULT 0,
	base TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS members (
	type_name TEXT NOT NULL,
	ordinal   INTEGER NOT NULL,
	name      TEXT NOT NULL,
	type      TEXT NOT NULL,
	off       INTEGER NOT NULL,
	PRIMARY KEY (type_name, ordinal)
);
CREATE TABLE IF NOT EXISTS symbols (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	scope    TEXT NOT NULL,
	name     TEXT NOT NULL,
	type     TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	reg      TEXT NOT NULL DEFAULT '',
	off      INTEGER NOT NULL DEFAULT 0,
	code     BLOB
);`

// OpenSQLite loads a scope from a debug-info database.
func OpenSQLite(path string) (*Scope, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("debuginfo: opening %s: %w", path, err)
	}
	defer db.Close()

	info, err := ReadSQLite(db)
	if err != nil {
		return nil, err
	}
	return Build(info)
}

// CreateSQLite writes info to a new database at path.
func CreateSQLite(path string, info *Info) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("debuginfo: opening %s: %w", path, err)
	}
	defer db.Close()
	return WriteSQLite(db, info)
}

// WriteSQLite stores info in db, creating the tables if needed.
func WriteSQLite(db *sql.DB, info *Info) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("debuginfo: creating tables: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("debuginfo: %w", err)
	}
	defer tx.Rollback()

	for name, value := range map[string]string{"arch": info.Arch, "procedure": info.Procedure} {
		if _, err := tx.Exec("INSERT OR REPLACE INTO meta (name, value) VALUES (?, ?)", name, value); err != nil {
			return fmt.Errorf("debuginfo: writing meta: %w", err)
		}
	}
	for _, t := range info.Types {
		if _, err := tx.Exec("INSERT INTO types (name, kind, size, base) VALUES (?, ?, ?, ?)",
			t.Name, t.Kind, int64(t.Size), t.Base); err != nil {
			return fmt.Errorf("debuginfo: writing type %s: %w", t.Name, err)
		}
		for i, m := range t.Members {
			if _, err := tx.Exec("INSERT INTO members (type_name, ordinal, name, type, off) VALUES (?, ?, ?, ?, ?)",
				t.Name, i, m.Name, m.Type, int64(m.Offset)); err != nil {
				return fmt.Errorf("debuginfo: writing member %s.%s: %w", t.Name, m.Name, err)
			}
		}
	}
	for _, s := range info.Symbols {
		code, err := hex.DecodeString(s.Code)
		if err != nil {
			return fmt.Errorf("debuginfo: symbol %s: bad bytecode: %w", s.Name, err)
		}
		if _, err := tx.Exec("INSERT INTO symbols (scope, name, type, location, reg, off, code) VALUES (?, ?, ?, ?, ?, ?, ?)",
			s.Scope, s.Name, s.Type, s.Location, s.Register, s.Offset, code); err != nil {
			return fmt.Errorf("debuginfo: writing symbol %s: %w", s.Name, err)
		}
	}
	return tx.Commit()
}

// ReadSQLite reads the declarative form of a scope from db. Symbols come
// back in insertion order, so later duplicate globals win.
func ReadSQLite(db *sql.DB) (*Info, error) {
	info := &Info{}

	for name, dst := range map[string]*string{"arch": &info.Arch, "procedure": &info.Procedure} {
		err := db.QueryRow("SELECT value FROM meta WHERE name = ?", name).Scan(dst)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("debuginfo: reading meta: %w", err)
		}
	}

	rows, err := db.Query("SELECT name, kind, size, base FROM types ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("debuginfo: reading types: %w", err)
	}
	index := make(map[string]int)
	for rows.Next() {
		var t TypeDecl
		var size int64
		if err := rows.Scan(&t.Name, &t.Kind, &size, &t.Base); err != nil {
			rows.Close()
			return nil, fmt.Errorf("debuginfo: reading types: %w", err)
		}
		t.Size = uint64(size)
		index[t.Name] = len(info.Types)
		info.Types = append(info.Types, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("debuginfo: reading types: %w", err)
	}

	rows, err = db.Query("SELECT type_name, name, type, off FROM members ORDER BY type_name, ordinal")
	if err != nil {
		return nil, fmt.Errorf("debuginfo: reading members: %w", err)
	}
	for rows.Next() {
		var owner string
		var m MemberDecl
		var off int64
		if err := rows.Scan(&owner, &m.Name, &m.Type, &off); err != nil {
			rows.Close()
			return nil, fmt.Errorf("debuginfo: reading members: %w", err)
		}
		i, ok := index[owner]
		if !ok {
			rows.Close()
			return nil, fmt.Errorf("debuginfo: member %s of unknown type %s", m.Name, owner)
		}
		m.Offset = uint64(off)
		info.Types[i].Members = append(info.Types[i].Members, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("debuginfo: reading members: %w", err)
	}

	rows, err = db.Query("SELECT scope, name, type, location, reg, off, code FROM symbols ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("debuginfo: reading symbols: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s SymbolDecl
		var code []byte
		if err := rows.Scan(&s.Scope, &s.Name, &s.Type, &s.Location, &s.Register, &s.Offset, &code); err != nil {
			return nil, fmt.Errorf("debuginfo: reading symbols: %w", err)
		}
		s.Code = hex.EncodeToString(code)
		info.Symbols = append(info.Symbols, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("debuginfo: reading symbols: %w", err)
	}
	return info, nil
}
