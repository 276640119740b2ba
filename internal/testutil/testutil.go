// Package testutil provides shared test helpers for setting up stores and databases.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/onto/internal/index"
	"github.com/starford/onto/internal/storage"
)

// SchemaYAML declares the classes, components and relations the fixture uses.
const SchemaYAML = `apiVersion: agent/v1
kind: Ontology
schema:
  namespaces: [corp]
  components:
    Contact:
      email: {type: string, required: true}
      tags: {type: "string[]"}
    Profile:
      joined: {type: date}
      manager: {type: ref, allowedTypes: [Person]}
  classes:
    Person:
      contact: Contact
      profile: Profile
    Team: {}
  relations:
    MEMBER_OF:
      domain: Person
      range: Team
      cardinality: mto
      qualifiers:
        role: {type: string}
    KNOWS:
      domain: Person
      range: Person
      cardinality: mtm
`

// JdoeYAML is a Person with a manager reference and two relations.
const JdoeYAML = `apiVersion: agent/v1
kind: Ontology
spec:
  classes:
    - _class: Person
      _id: jdoe
      _namespace: corp
      components:
        contact:
          email: jdoe@company.com
          tags: [ops]
        profile:
          joined: "2021-04-01"
          manager: asmith:Person
      relations:
        MEMBER_OF:
          - {_to: zulu, role: lead}
        KNOWS: [asmith]
`

// AsmithYAML is a minimal Person.
const AsmithYAML = `apiVersion: agent/v1
kind: Ontology
spec:
  classes:
    - _class: Person
      _id: asmith
      components:
        contact:
          email: alice@company.com
`

// ZuluMD is a Team whose Markdown body links back to jdoe.
const ZuluMD = `---
apiVersion: agent/v1
kind: Ontology
spec:
  classes:
    - _class: Team
      _id: zulu
---
# Team Zulu

Led by [[Person/jdoe]].
`

// Fixture returns a conforming store layout keyed by store path.
func Fixture() map[string]string {
	return map[string]string{
		"schema.yaml":        SchemaYAML,
		"people/jdoe.yaml":   JdoeYAML,
		"people/asmith.yaml": AsmithYAML,
		"teams/zulu.md":      ZuluMD,
	}
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "onto-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore creates a temporary store directory holding files.
func TestStore(t *testing.T, files map[string]string) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	for p, content := range files {
		if err := store.Write(p, []byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	return dir, store
}
