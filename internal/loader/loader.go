// Package loader materialises the typed graph from storage files.
//
// Loading never fails on file content: undecodable files become documents
// carrying a parse error, malformed shapes are skipped, and the validator
// reports every such condition from the raw documents kept on the graph.
package loader

import (
	"fmt"
	"path"
	"strings"

	"github.com/starford/onto/internal/model"
	"github.com/starford/onto/internal/parser"
	"github.com/starford/onto/internal/storage"
)

// File is one storage file's path and content.
type File struct {
	Path string
	Data []byte
}

// Snapshot is a graph together with the metadata of the files it was built from.
type Snapshot struct {
	Graph *model.Graph
	Files []storage.FileInfo
}

// Load reads every storage file from store and builds the graph.
func Load(store storage.Provider) (*model.Graph, error) {
	snap, err := LoadSnapshot(store)
	if err != nil {
		return nil, err
	}
	return snap.Graph, nil
}

// LoadSnapshot is Load that also returns the listed file metadata, so
// callers can tell whether a projection of the graph is stale.
func LoadSnapshot(store storage.Provider) (*Snapshot, error) {
	metas, err := store.List("")
	if err != nil {
		return nil, fmt.Errorf("loader: list: %w", err)
	}
	files := make([]File, 0, len(metas))
	for _, m := range metas {
		data, err := store.Read(m.Path)
		if err != nil {
			return nil, fmt.Errorf("loader: %w", err)
		}
		files = append(files, File{Path: m.Path, Data: data})
	}
	return &Snapshot{Graph: Build(files), Files: metas}, nil
}

type decodedFile struct {
	path  string
	docs  []decodedDoc
	links []parser.WikiLink
}

type decodedDoc struct {
	model.Document
	parsed *parser.Doc
}

// Build constructs the graph from already-read files, in the given order.
func Build(files []File) *model.Graph {
	decoded := make([]decodedFile, 0, len(files))
	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
		decoded = append(decoded, decodeFile(f))
	}

	schema := model.NewSchema()
	for _, df := range decoded {
		for _, d := range df.docs {
			if d.parsed != nil {
				mergeSchema(schema, df.path, d.parsed)
			}
		}
	}

	var (
		docs      []model.Document
		instances []*model.Instance
		edges     []*model.Edge
	)
	for _, df := range decoded {
		var first *model.Instance
		for _, d := range df.docs {
			docs = append(docs, d.Document)
			spec, ok := asMap(d.Raw["spec"])
			if !ok {
				continue
			}
			for _, entry := range asList(spec["classes"]) {
				raw, ok := asMap(entry)
				if !ok {
					continue
				}
				inst, instEdges := buildInstance(schema, df.path, raw)
				if first == nil {
					first = inst
				}
				instances = append(instances, inst)
				edges = append(edges, instEdges...)
			}
			edges = append(edges, flatRelations(schema, df.path, spec["relations"])...)
		}
		if first != nil {
			for _, link := range df.links {
				edges = append(edges, &model.Edge{
					From:        first.ID,
					Relation:    model.LinksTo,
					To:          link.ID,
					SourceFile:  df.path,
					Implicit:    true,
					TargetClass: link.Class,
				})
			}
		}
	}

	return model.NewGraph(paths, docs, schema, instances, edges)
}

func decodeFile(f File) decodedFile {
	df := decodedFile{path: f.Path}
	if strings.EqualFold(path.Ext(f.Path), ".md") {
		md, err := parser.ParseMarkdown(f.Data)
		df.links = md.Links
		switch {
		case err != nil:
			df.docs = []decodedDoc{{Document: model.Document{File: f.Path, ParseErr: err}}}
		case md.Frontmatter == nil:
			df.docs = []decodedDoc{{Document: model.Document{File: f.Path}}}
		default:
			df.docs = []decodedDoc{{
				Document: model.Document{File: f.Path, Raw: md.Frontmatter.Raw},
				parsed:   md.Frontmatter,
			}}
		}
		return df
	}

	parsed, err := parser.ParseYAML(f.Data)
	for i := range parsed {
		df.docs = append(df.docs, decodedDoc{
			Document: model.Document{File: f.Path, Index: i, Raw: parsed[i].Raw},
			parsed:   &parsed[i],
		})
	}
	if err != nil {
		df.docs = append(df.docs, decodedDoc{Document: model.Document{File: f.Path, Index: len(parsed), ParseErr: err}})
	}
	if len(df.docs) == 0 {
		df.docs = []decodedDoc{{Document: model.Document{File: f.Path}}}
	}
	return df
}

func buildInstance(schema *model.Schema, file string, raw map[string]any) (*model.Instance, []*model.Edge) {
	inst := &model.Instance{
		Class:      asString(raw[model.KeyClass]),
		ID:         asString(raw[model.KeyID]),
		Namespace:  asString(raw[model.KeyNamespace]),
		SourceFile: file,
		Components: make(map[string]map[string]model.Value),
		Raw:        raw,
	}

	if comps, ok := asMap(raw[model.KeyComponents]); ok {
		for local, block := range comps {
			props, ok := asMap(block)
			if !ok {
				continue
			}
			values := make(map[string]model.Value, len(props))
			for name, v := range props {
				if def, ok := schema.PropertyDef(inst.Class, local, name); ok {
					values[name] = model.Resolve(def.Type, v)
				} else {
					values[name] = model.Untyped(v)
				}
			}
			inst.Components[local] = values
		}
	}

	var edges []*model.Edge
	rels, _ := asMap(raw[model.KeyRelations])
	for _, rel := range sortedKeys(rels) {
		for _, target := range targets(rels[rel]) {
			e, ok := buildEdge(schema, file, inst.ID, rel, target)
			if ok {
				edges = append(edges, e)
			}
		}
	}
	return inst, edges
}

// targets normalises a relation entry: a single target or a list of them.
func targets(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	if v == nil {
		return nil
	}
	return []any{v}
}

func buildEdge(schema *model.Schema, file, from, rel string, target any) (*model.Edge, bool) {
	switch t := target.(type) {
	case string:
		return &model.Edge{From: from, Relation: rel, To: t, SourceFile: file}, true
	case map[string]any:
		to, ok := t[model.KeyTo].(string)
		if !ok {
			return nil, false
		}
		e := &model.Edge{From: from, Relation: rel, To: to, SourceFile: file}
		e.Qualifiers = qualifiers(schema, rel, t, model.KeyTo)
		return e, true
	}
	return nil, false
}

func qualifiers(schema *model.Schema, rel string, raw map[string]any, skip ...string) map[string]model.Value {
	var out map[string]model.Value
	relation := schema.Relations[rel]
	for k, v := range raw {
		if contains(skip, k) {
			continue
		}
		if out == nil {
			out = make(map[string]model.Value)
		}
		if relation != nil {
			if q, ok := relation.Qualifiers[k]; ok {
				out[k] = model.Resolve(q.Type, v)
				continue
			}
		}
		out[k] = model.Untyped(v)
	}
	return out
}

// flatRelations materialises the deprecated top-level spec.relations list so
// its edges are still visible to placement and endpoint checks.
func flatRelations(schema *model.Schema, file string, v any) []*model.Edge {
	var edges []*model.Edge
	for _, item := range asList(v) {
		m, ok := asMap(item)
		if !ok {
			continue
		}
		from := firstString(m, "from", "_from")
		rel := firstString(m, "type", "relation")
		to := firstString(m, "to", model.KeyTo)
		if from == "" || rel == "" || to == "" {
			continue
		}
		edges = append(edges, &model.Edge{
			From:       from,
			Relation:   rel,
			To:         to,
			Qualifiers: qualifiers(schema, rel, m, "from", "_from", "type", "relation", "to", model.KeyTo),
			SourceFile: file,
		})
	}
	return edges
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
