package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/onto/internal/apperr"
	"github.com/starford/onto/internal/model"
	"github.com/starford/onto/internal/storage"
)

// InstanceRow represents a row in the instances table. Properties holds the
// rendered value of every component property, keyed by local name.
type InstanceRow struct {
	ID         string                       `json:"id"`
	Class      string                       `json:"class"`
	Namespace  string                       `json:"namespace,omitempty"`
	SourceFile string                       `json:"source_file"`
	Properties map[string]map[string]string `json:"properties"`
}

// EdgeRow represents a row in the edges table.
type EdgeRow struct {
	Source     string `json:"source"`
	Relation   string `json:"relation"`
	Target     string `json:"target"`
	SourceFile string `json:"source_file"`
	Implicit   bool   `json:"implicit,omitempty"`
}

// ClassCount is the number of indexed instances of one class.
type ClassCount struct {
	Class string `json:"class"`
	Count int    `json:"count"`
}

// Replace swaps the whole projection for g within one transaction. When an
// id is defined twice the first definition is kept, as in the graph.
func (db *DB) Replace(g *model.Graph, files []storage.FileInfo) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, table := range []string{"files", "instances", "edges"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("index: clear %s: %w", table, err)
		}
	}

	fileStmt, err := tx.Prepare(`INSERT OR REPLACE INTO files (path, checksum, updated_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare file insert: %w", err)
	}
	defer fileStmt.Close()
	for _, f := range files {
		if _, err := fileStmt.Exec(f.Path, f.Checksum, f.UpdatedAt); err != nil {
			return fmt.Errorf("index: insert file: %w", err)
		}
	}

	instStmt, err := tx.Prepare(`INSERT OR IGNORE INTO instances (id, class, namespace, source_file, properties) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare instance insert: %w", err)
	}
	defer instStmt.Close()
	for _, inst := range g.Instances {
		if inst.ID == "" {
			continue
		}
		props, _ := json.Marshal(NewInstanceRow(inst).Properties)
		if _, err := instStmt.Exec(inst.ID, inst.Class, inst.Namespace, inst.SourceFile, string(props)); err != nil {
			return fmt.Errorf("index: insert instance: %w", err)
		}
	}

	edgeStmt, err := tx.Prepare(`INSERT OR IGNORE INTO edges (source, relation, target, source_file, implicit) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()
	for _, e := range g.Edges {
		if _, err := edgeStmt.Exec(e.From, e.Relation, e.To, e.SourceFile, e.Implicit); err != nil {
			return fmt.Errorf("index: insert edge: %w", err)
		}
	}

	return tx.Commit()
}

// NewInstanceRow renders inst the way it is stored in the index.
func NewInstanceRow(inst *model.Instance) InstanceRow {
	props := make(map[string]map[string]string, len(inst.Components))
	for local, values := range inst.Components {
		m := make(map[string]string, len(values))
		for name, v := range values {
			m[name] = v.String()
		}
		props[local] = m
	}
	return InstanceRow{
		ID:         inst.ID,
		Class:      inst.Class,
		Namespace:  inst.Namespace,
		SourceFile: inst.SourceFile,
		Properties: props,
	}
}

// AllChecksums returns the checksum of every file the projection was built from.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM files`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// GetInstance returns one indexed instance.
func (db *DB) GetInstance(id string) (*InstanceRow, error) {
	row := db.conn.QueryRow(`SELECT id, class, namespace, source_file, properties FROM instances WHERE id = ?`, id)
	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: instance %q: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get instance: %w", err)
	}
	return inst, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInstance(s scanner) (*InstanceRow, error) {
	var (
		r     InstanceRow
		props string
	)
	if err := s.Scan(&r.ID, &r.Class, &r.Namespace, &r.SourceFile, &props); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(props), &r.Properties); err != nil {
		return nil, fmt.Errorf("decode properties: %w", err)
	}
	return &r, nil
}

// ListInstances returns a page of instances ordered by id, optionally
// filtered by class, together with the total count.
func (db *DB) ListInstances(class string, limit, offset int) ([]InstanceRow, int, error) {
	where, args := "", []any{}
	if class != "" {
		where = ` WHERE class = ?`
		args = append(args, class)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM instances`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count instances: %w", err)
	}

	rows, err := db.conn.Query(
		`SELECT id, class, namespace, source_file, properties FROM instances`+where+` ORDER BY id LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list instances: %w", err)
	}
	defer rows.Close()

	out := []InstanceRow{}
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("index: list instances: %w", err)
		}
		out = append(out, *inst)
	}
	return out, total, rows.Err()
}

// Outgoing returns the edges whose source is id.
func (db *DB) Outgoing(id string) ([]EdgeRow, error) {
	return db.edges(`SELECT source, relation, target, source_file, implicit FROM edges WHERE source = ? ORDER BY relation, target`, id)
}

// Backlinks returns the edges that point at id.
func (db *DB) Backlinks(id string) ([]EdgeRow, error) {
	return db.edges(`SELECT source, relation, target, source_file, implicit FROM edges WHERE target = ? ORDER BY source, relation`, id)
}

func (db *DB) edges(query, id string) ([]EdgeRow, error) {
	rows, err := db.conn.Query(query, id)
	if err != nil {
		return nil, fmt.Errorf("index: edges: %w", err)
	}
	defer rows.Close()

	out := []EdgeRow{}
	for rows.Next() {
		var e EdgeRow
		if err := rows.Scan(&e.Source, &e.Relation, &e.Target, &e.SourceFile, &e.Implicit); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClassCounts returns the number of instances per class, by class name.
func (db *DB) ClassCounts() ([]ClassCount, error) {
	rows, err := db.conn.Query(`SELECT class, count(*) FROM instances GROUP BY class ORDER BY class`)
	if err != nil {
		return nil, fmt.Errorf("index: class counts: %w", err)
	}
	defer rows.Close()

	var out []ClassCount
	for rows.Next() {
		var c ClassCount
		if err := rows.Scan(&c.Class, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
