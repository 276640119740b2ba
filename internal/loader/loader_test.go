package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/onto/internal/model"
	"github.com/starford/onto/internal/storage"
)

const schemaYAML = `apiVersion: agent/v1
kind: Ontology
schema:
  namespaces: [corp]
  components:
    Contact:
      email: {type: string, required: true}
      phone: string
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
      cardinality: {min: 0, max: many}
`

const jdoeYAML = `apiVersion: agent/v1
kind: Ontology
spec:
  classes:
    - _class: Person
      _id: jdoe
      _namespace: corp
      components:
        contact:
          email: jdoe@company.com
        profile:
          joined: "2021-04-01"
          manager: boss:Person
      relations:
        MEMBER_OF:
          - {_to: zulu, role: lead}
        KNOWS: asmith
`

const zuluMD = `---
apiVersion: agent/v1
kind: Ontology
spec:
  classes:
    - _class: Team
      _id: zulu
---
# Team Zulu

Led by [[Person/jdoe]] with [[Person/asmith|Alice]]. Logo: ![[Image/logo]].
Again [[Person/jdoe#bio]].
`

func fixture() []File {
	return []File{
		{Path: "schema.yaml", Data: []byte(schemaYAML)},
		{Path: "people/jdoe.yaml", Data: []byte(jdoeYAML)},
		{Path: "teams/zulu.md", Data: []byte(zuluMD)},
	}
}

func TestBuild_Schema(t *testing.T) {
	g := Build(fixture())

	require.Contains(t, g.Schema.Components, "Contact")
	contact := g.Schema.Components["Contact"]
	require.Len(t, contact.Properties, 2)
	assert.Equal(t, "email", contact.Properties[0].Name)
	assert.True(t, contact.Properties[0].Required)
	assert.Equal(t, model.BaseString, contact.Properties[1].Type.Base)

	manager, ok := g.Schema.PropertyDef("Person", "profile", "manager")
	require.True(t, ok)
	assert.Equal(t, []string{"Person"}, manager.AllowedTypes)

	assert.Equal(t, model.ManyToOne, g.Schema.Relations["MEMBER_OF"].Cardinality)
	assert.Equal(t, model.ManyToMany, g.Schema.Relations["KNOWS"].Cardinality)
	assert.True(t, g.Schema.Relations[model.LinksTo].Implicit)
	assert.Equal(t, []string{"corp"}, g.Schema.Namespaces)
	assert.Empty(t, g.Schema.Classes["Team"].Components)
	assert.Equal(t, "schema.yaml", g.Schema.Classes["Team"].SourceFile)
	assert.Equal(t, "schema.yaml", g.Schema.Relations["KNOWS"].SourceFile)
}

func TestBuild_InstancesAndValues(t *testing.T) {
	g := Build(fixture())

	require.Len(t, g.Instances, 2)
	jdoe, ok := g.Instance("jdoe")
	require.True(t, ok)
	assert.Equal(t, "Person", jdoe.Class)
	assert.Equal(t, "corp", jdoe.Namespace)
	assert.Equal(t, "people/jdoe.yaml", jdoe.SourceFile)

	email := jdoe.Components["contact"]["email"]
	assert.Equal(t, model.KindString, email.Kind)
	assert.Equal(t, "jdoe@company.com", email.String())

	joined := jdoe.Components["profile"]["joined"]
	require.NoError(t, joined.Err)
	assert.Equal(t, model.KindDate, joined.Kind)

	manager := jdoe.Components["profile"]["manager"]
	assert.Equal(t, []model.Ref{{ID: "boss", Class: "Person"}}, manager.Refs())
}

func TestBuild_Edges(t *testing.T) {
	g := Build(fixture())

	var explicit, implicit []*model.Edge
	for _, e := range g.Edges {
		if e.Implicit {
			implicit = append(implicit, e)
		} else {
			explicit = append(explicit, e)
		}
	}

	require.Len(t, explicit, 2)
	// relations are read in sorted name order
	assert.Equal(t, "KNOWS", explicit[0].Relation)
	assert.Equal(t, "asmith", explicit[0].To)
	assert.Equal(t, "MEMBER_OF", explicit[1].Relation)
	assert.Equal(t, "zulu", explicit[1].To)
	assert.Equal(t, "lead", explicit[1].Qualifiers["role"].String())
	assert.Equal(t, "people/jdoe.yaml", explicit[1].SourceFile)

	require.Len(t, implicit, 2)
	assert.Equal(t, "zulu", implicit[0].From)
	assert.Equal(t, model.LinksTo, implicit[0].Relation)
	assert.Equal(t, "jdoe", implicit[0].To)
	assert.Equal(t, "Person", implicit[0].TargetClass)
	assert.Equal(t, "asmith", implicit[1].To)
	assert.Equal(t, "teams/zulu.md", implicit[1].SourceFile)
}

func TestBuild_ParseErrorBecomesDocument(t *testing.T) {
	g := Build([]File{{Path: "broken.yaml", Data: []byte("a: [unclosed\n")}})
	require.Len(t, g.Documents, 1)
	assert.Error(t, g.Documents[0].ParseErr)
	assert.Empty(t, g.Instances)
}

func TestBuild_EmptyFileStillHasDocument(t *testing.T) {
	g := Build([]File{{Path: "empty.yaml", Data: nil}, {Path: "plain.md", Data: []byte("# no frontmatter")}})
	require.Len(t, g.Documents, 2)
	assert.Nil(t, g.Documents[0].Raw)
	assert.Nil(t, g.Documents[1].Raw)
}

func TestBuild_FlatRelations(t *testing.T) {
	doc := `apiVersion: agent/v1
kind: Ontology
spec:
  relations:
    - {from: jdoe, type: MEMBER_OF, to: zulu, role: dev}
`
	g := Build(append(fixture(), File{Path: "legacy.yaml", Data: []byte(doc)}))
	last := g.Edges[len(g.Edges)-1]
	assert.Equal(t, "legacy.yaml", last.SourceFile)
	assert.Equal(t, "jdoe", last.From)
	assert.Equal(t, "dev", last.Qualifiers["role"].String())
}

func TestLoad_FromStore(t *testing.T) {
	store, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	for _, f := range fixture() {
		require.NoError(t, store.Write(f.Path, f.Data))
	}

	g, err := Load(store)
	require.NoError(t, err)
	assert.Equal(t, []string{"people/jdoe.yaml", "schema.yaml", "teams/zulu.md"}, g.Files)
	assert.Len(t, g.Instances, 2)
}

func TestLoadSnapshot_CarriesChecksums(t *testing.T) {
	store, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	for _, f := range fixture() {
		require.NoError(t, store.Write(f.Path, f.Data))
	}

	snap, err := LoadSnapshot(store)
	require.NoError(t, err)
	require.Len(t, snap.Files, 3)
	for _, f := range snap.Files {
		data, err := store.Read(f.Path)
		require.NoError(t, err)
		assert.Equal(t, storage.Checksum(data), f.Checksum, f.Path)
	}
	assert.Equal(t, []string{"people/jdoe.yaml", "schema.yaml", "teams/zulu.md"}, snap.Graph.Files)
}
