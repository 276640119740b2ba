package validator

import (
	"maps"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/onto/internal/loader"
	"github.com/starford/onto/internal/model"
)

const schemaYAML = `apiVersion: agent/v1
kind: Ontology
schema:
  namespaces: [corp]
  components:
    Contact:
      email: {type: string, required: true}
      tags: {type: "string[]"}
    Profile:
      joined: {type: date}
      active: {type: bool}
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
        since: {type: date}
    KNOWS:
      domain: Person
      range: Person
      cardinality: mtm
    LEADS:
      domain: Person
      range: Team
      cardinality: oto
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
          tags: [ops, oncall]
        profile:
          joined: "2021-04-01"
          active: true
          manager: asmith:Person
      relations:
        MEMBER_OF:
          - {_to: zulu, role: lead}
        KNOWS: [asmith]
`

const asmithYAML = `apiVersion: agent/v1
kind: Ontology
spec:
  classes:
    - _class: Person
      _id: asmith
      components:
        contact:
          email: alice@company.com
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

Led by [[Person/jdoe]].
`

// person renders a Person instance document with the given indented body
// appended under the instance entry.
func person(id, body string) string {
	return "apiVersion: agent/v1\nkind: Ontology\nspec:\n  classes:\n    - _class: Person\n      _id: " + id + "\n" + body
}

// build loads the base fixture with overrides applied; an empty override
// removes the file.
func build(overrides map[string]string) *model.Graph {
	set := map[string]string{
		"schema.yaml":        schemaYAML,
		"people/jdoe.yaml":   jdoeYAML,
		"people/asmith.yaml": asmithYAML,
		"teams/zulu.md":      zuluMD,
	}
	for path, content := range overrides {
		if content == "" {
			delete(set, path)
			continue
		}
		set[path] = content
	}
	var files []loader.File
	for _, path := range slices.Sorted(maps.Keys(set)) {
		files = append(files, loader.File{Path: path, Data: []byte(set[path])})
	}
	return loader.Build(files)
}

func validate(t *testing.T, overrides map[string]string) *Report {
	t.Helper()
	return Validate(build(overrides))
}

func matching(issues []Issue, substr string) []Issue {
	var out []Issue
	for _, is := range issues {
		if strings.Contains(is.Message, substr) {
			out = append(out, is)
		}
	}
	return out
}

func messages(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.Message
	}
	return out
}

func TestValidate_ConformingGraph(t *testing.T) {
	r := validate(t, nil)

	assert.True(t, r.Valid, "errors: %v", messages(r.Errors))
	assert.Empty(t, r.Errors)
	assert.Empty(t, r.Warnings)
	assert.Equal(t, Counts{
		Files:      4,
		Documents:  4,
		Components: 2,
		Classes:    2,
		Relations:  3,
		Instances:  3,
		Edges:      3,
	}, r.Counts)
	assert.True(t, r.Passed(true))
}

func TestValidate_Idempotent(t *testing.T) {
	g := build(map[string]string{
		"people/dup.yaml": person("jdoe", "      junk: 1\n"),
		"bad.yaml":        "apiVersion: agent/v2\n",
	})

	first, second := Validate(g), Validate(g)
	require.NotEmpty(t, first.Errors)
	assert.Equal(t, first.Errors, second.Errors)
	assert.Equal(t, first.Warnings, second.Warnings)
}

func TestValidate_DocumentStructure(t *testing.T) {
	r := validate(t, map[string]string{
		"bad.yaml":    "apiVersion: agent/v2\nspec: {}\n",
		"header.yaml": "apiVersion: agent/v1\nkind: Ontology\n",
		"broken.yaml": "a: [unclosed\n",
	})

	assert.False(t, r.Valid)
	assert.Len(t, matching(r.Errors, "has apiVersion agent/v2"), 1)
	assert.Len(t, matching(r.Errors, "is missing kind"), 1)
	assert.Len(t, matching(r.Errors, "could not be parsed"), 1)

	noSection := matching(r.Errors, "must contain a schema or spec section")
	require.Len(t, noSection, 2)
	assert.Equal(t, "broken.yaml", noSection[0].Source)
	assert.Equal(t, "header.yaml", noSection[1].Source)
	assert.Equal(t, CategoryStructural, noSection[0].Category)
}

func TestValidate_ReservedLinksTo(t *testing.T) {
	r := validate(t, map[string]string{
		"extra-schema.yaml": "apiVersion: agent/v1\nkind: Ontology\nschema:\n  relations:\n    LINKS_TO: {}\n",
	})
	require.Len(t, r.Errors, 1)
	assert.Contains(t, r.Errors[0].Message, "LINKS_TO is reserved")
	assert.Equal(t, 3, r.Counts.Relations)
}

func TestValidate_FlatRelationsBanned(t *testing.T) {
	r := validate(t, map[string]string{
		"legacy.yaml": "apiVersion: agent/v1\nkind: Ontology\nspec:\n  relations:\n    - {from: asmith, type: KNOWS, to: jdoe}\n",
	})

	assert.Len(t, matching(r.Errors, "top-level spec.relations is not supported"), 1)
	// the materialised edge lives outside its source instance's file
	placement := matching(r.Errors, "is declared in legacy.yaml")
	require.Len(t, placement, 1)
	assert.Equal(t, "asmith (Person)", placement[0].Instance)
}

func TestValidate_RelationTargetShape(t *testing.T) {
	r := validate(t, map[string]string{
		"people/asmith.yaml": person("asmith", `      components:
        contact: {email: a@b.c}
      relations:
        KNOWS:
          - {_id: bob, _class: Person}
          - 42
          - {_to: jdoe, note: ok}
`),
	})

	inline := matching(r.Errors, "defines an inline instance")
	require.Len(t, inline, 1)
	assert.Equal(t, "asmith (Person)", inline[0].Instance)
	assert.Len(t, matching(r.Errors, "must be an id string or an object with _to, got number"), 1)
	assert.Len(t, r.Errors, 2, "errors: %v", messages(r.Errors))
}

func TestValidate_NamingWarnings(t *testing.T) {
	g := loader.Build([]loader.File{{Path: "schema.yaml", Data: []byte(`apiVersion: agent/v1
kind: Ontology
schema:
  components:
    contact_info:
      Email: string
  classes:
    person:
      Info: contact_info
  relations:
    memberOf:
      cardinality: {min: 0, max: many}
      qualifiers:
        Role: string
`)}})

	r := Validate(g)
	assert.True(t, r.Valid, "errors: %v", messages(r.Errors))
	assert.Equal(t, []string{
		`component "contact_info" should be ProperCase`,
		`property contact_info.Email should be camelCase`,
		`class "person" should be ProperCase`,
		`component local name person.Info should be camelCase`,
		`relation "memberOf" should be UPPER_SNAKE`,
		`relation memberOf should use a cardinality code (oto, otm, mto, mtm) instead of {min, max}`,
		`qualifier memberOf.Role should be camelCase`,
	}, messages(r.Warnings))
	for _, w := range r.Warnings {
		assert.Equal(t, CategoryStyle, w.Category)
	}
	assert.True(t, r.Passed(false))
	assert.False(t, r.Passed(true))
}

func TestValidate_SchemaMetadata(t *testing.T) {
	r := validate(t, map[string]string{
		"meta.yaml": `apiVersion: agent/v1
kind: Ontology
schema:
  components:
    Meta:
      label: {type: string, allowedTypes: [Person]}
      owner: {type: ref, allowedTypes: []}
      hint: {type: string, uiHints: textarea}
      ok: {type: "ref[]", allowedTypes: [Team], uiHints: [picker]}
  relations:
    ODD:
      cardinality: few
`,
	})

	assert.Equal(t, []string{
		"property Meta.hint: uiHints must be an array of strings",
		"property Meta.label: allowedTypes is only valid on ref or ref[] properties",
		"property Meta.owner: allowedTypes must be a non-empty array of class names",
		"relation ODD has invalid cardinality few (expected oto, otm, mto or mtm)",
	}, messages(r.Errors))
}

func TestValidate_SchemaReferences(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]string
		want      []string
		source    string
	}{
		{
			name: "class local names undeclared component",
			overrides: map[string]string{"schema2.yaml": `apiVersion: agent/v1
kind: Ontology
schema:
  classes:
    Ghost:
      body: NoSuchComponent
`},
			want:   []string{`class Ghost: local body references undeclared component "NoSuchComponent"`},
			source: "schema2.yaml",
		},
		{
			name: "relation endpoints must be declared classes",
			overrides: map[string]string{"schema2.yaml": `apiVersion: agent/v1
kind: Ontology
schema:
  relations:
    HAUNTS:
      domain: Phantom
      range: Person
    SCARES:
      domain: "*"
      range: Spook
`},
			want: []string{
				`relation HAUNTS: domain "Phantom" is not a declared class`,
				`relation SCARES: range "Spook" is not a declared class`,
			},
			source: "schema2.yaml",
		},
		{
			name: "instance namespace must be declared",
			overrides: map[string]string{
				"people/asmith.yaml": person("asmith", "      _namespace: nosuchns\n      components:\n        contact: {email: a@b.c}\n"),
			},
			want:   []string{`namespace "nosuchns" is not declared under schema.namespaces`},
			source: "people/asmith.yaml",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := validate(t, tc.overrides)
			assert.Equal(t, tc.want, messages(r.Errors))
			for _, e := range r.Errors {
				assert.Equal(t, CategoryReferential, e.Category)
				assert.Equal(t, tc.source, e.Source)
			}
		})
	}
}

func TestValidate_InstanceOfClassWithUndeclaredComponent(t *testing.T) {
	r := validate(t, map[string]string{
		"schema2.yaml": "apiVersion: agent/v1\nkind: Ontology\nschema:\n  classes:\n    Ghost:\n      body: NoSuchComponent\n",
		"ghosts/boo.yaml": "apiVersion: agent/v1\nkind: Ontology\nspec:\n  classes:\n    - {_class: Ghost, _id: boo, components: {body: {x: 1}}}\n",
	})
	assert.Equal(t, []string{`class Ghost: local body references undeclared component "NoSuchComponent"`}, messages(r.Errors))
}

func TestValidate_OneInstancePerFile(t *testing.T) {
	r := validate(t, map[string]string{
		"teams/many.yaml": `apiVersion: agent/v1
kind: Ontology
spec:
  classes:
    - {_class: Team, _id: alpha}
    - {_class: Team, _id: beta}
`,
	})
	errs := matching(r.Errors, "file defines 2 instances")
	require.Len(t, errs, 1)
	assert.Equal(t, "teams/many.yaml", errs[0].Source)
}

func TestValidate_DuplicateID(t *testing.T) {
	r := validate(t, map[string]string{
		"teams/jdoe.yaml": "apiVersion: agent/v1\nkind: Ontology\nspec:\n  classes:\n    - {_class: Team, _id: jdoe}\n",
	})

	require.Len(t, r.Errors, 1, "errors: %v", messages(r.Errors))
	dup := r.Errors[0]
	assert.Equal(t, `duplicate _id "jdoe": already defined in people/jdoe.yaml`, dup.Message)
	assert.Equal(t, "teams/jdoe.yaml", dup.Source)
	assert.Equal(t, "jdoe (Team)", dup.Instance)
	assert.Equal(t, CategoryReferential, dup.Category)
}

func TestValidate_InstanceShape(t *testing.T) {
	r := validate(t, map[string]string{
		"people/asmith.yaml": person("asmith", `      email: root@company.com
      components:
        contact:
          email: alice@company.com
          fax: "555"
        extra: {}
`),
	})

	assert.Equal(t, []string{
		`unexpected key "email" at instance root; properties must be declared inside a component`,
		"property contact.fax is not declared on component Contact",
		`component "extra" is not declared on class Person`,
	}, messages(r.Errors))
}

func TestValidate_UnknownClassShortCircuits(t *testing.T) {
	r := validate(t, map[string]string{
		"bots/r2.yaml": "apiVersion: agent/v1\nkind: Ontology\nspec:\n  classes:\n    - {_class: Robot, _id: r2, junk: 1}\n",
	})
	require.Len(t, r.Errors, 1)
	assert.Equal(t, `unknown class "Robot"`, r.Errors[0].Message)
}

func TestValidate_RequiredComponentsAndProperties(t *testing.T) {
	r := validate(t, map[string]string{
		"people/asmith.yaml": person("asmith", "      components:\n        profile: {active: false}\n"),
		"people/bob.yaml":    person("bob", "      components:\n        contact: {tags: [x]}\n"),
	})

	assert.Equal(t, []string{
		`missing required component "contact" (Contact)`,
		"missing required property contact.email",
	}, messages(r.Errors))
}

func TestValidate_TypeMismatches(t *testing.T) {
	r := validate(t, map[string]string{
		"people/asmith.yaml": person("asmith", `      components:
        contact:
          email: 42
          tags: [ok, true]
        profile:
          joined: someday
          active: "yes"
          manager: boss
`),
	})

	assert.Equal(t, []string{
		"property contact.email: expected string, got number",
		"property contact.tags[1]: expected string, got bool",
		"property profile.active: expected bool, got string",
		`property profile.joined: "someday" is not a valid date`,
		`property profile.manager: reference "boss" must have the form <id>:<Class>`,
	}, messages(r.Errors))
	for _, e := range r.Errors {
		assert.Equal(t, CategoryType, e.Category)
	}
}

func TestValidate_ArrayTypeRequiresArray(t *testing.T) {
	r := validate(t, map[string]string{
		"people/asmith.yaml": person("asmith", "      components:\n        contact: {email: a@b.c, tags: solo}\n"),
	})
	assert.Equal(t, []string{"property contact.tags: expected string[], got string"}, messages(r.Errors))
}

func TestValidate_RefIntegrity(t *testing.T) {
	tests := []struct {
		name    string
		manager string
		want    string
	}{
		{"dangling", "ghost:Person", `reference profile.manager -> ghost:Person: instance "ghost" not found`},
		{"wrong class", "zulu:Person", `reference profile.manager -> zulu:Person: "zulu" is a Team, not a Person`},
		{"not allowed", "zulu:Team", "reference profile.manager -> zulu:Team: class Team is not allowed (allowed: Person)"},
		{"id with colon", "urn:x:Person", `reference profile.manager -> urn:x:Person: instance "urn:x" not found`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := validate(t, map[string]string{
				"people/asmith.yaml": person("asmith", "      components:\n        contact: {email: a@b.c}\n        profile: {manager: \""+tc.manager+"\"}\n"),
			})
			assert.Equal(t, []string{tc.want}, messages(r.Errors))
		})
	}
}

func TestValidate_Edges(t *testing.T) {
	r := validate(t, map[string]string{
		"people/asmith.yaml": person("asmith", `      components:
        contact: {email: a@b.c}
      relations:
        FOLLOWS: jdoe
        KNOWS: [ghost, zulu]
        MEMBER_OF:
          - {_to: jdoe, since: someday, extra: free}
`),
	})

	assert.Equal(t, []string{
		`edge asmith -[FOLLOWS]-> jdoe: unknown relation "FOLLOWS"`,
		`edge asmith -[KNOWS]-> ghost: target instance "ghost" not found`,
		`edge asmith -[KNOWS]-> zulu: range of KNOWS is Person but "zulu" is a Team`,
		`edge asmith -[MEMBER_OF]-> jdoe: range of MEMBER_OF is Team but "jdoe" is a Person`,
		`edge asmith -[MEMBER_OF]-> jdoe qualifier since: "someday" is not a valid date`,
	}, messages(r.Errors))
}

func TestValidate_ImplicitLinkTargetMustExist(t *testing.T) {
	r := validate(t, map[string]string{
		"teams/zulu.md": strings.Replace(zuluMD, "[[Person/jdoe]]", "[[Person/jdoe]] and [[Person/ghost]]", 1),
	})
	assert.Equal(t, []string{`edge zulu -[LINKS_TO]-> ghost: target instance "ghost" not found`}, messages(r.Errors))
}

func TestValidate_ImplicitLinkClassMustMatch(t *testing.T) {
	r := validate(t, map[string]string{
		"teams/zulu.md": strings.Replace(zuluMD, "[[Person/jdoe]]", "[[Team/jdoe]]", 1),
	})
	require.Len(t, r.Errors, 1, "errors: %v", messages(r.Errors))
	assert.Equal(t, `link [[Team/jdoe]]: "jdoe" is a Person, not a Team`, r.Errors[0].Message)
	assert.Equal(t, "teams/zulu.md", r.Errors[0].Source)
}

func TestValidate_EdgePlacement(t *testing.T) {
	g := build(nil)
	stray := &model.Edge{From: "asmith", Relation: "KNOWS", To: "jdoe", SourceFile: "people/jdoe.yaml"}
	g = model.NewGraph(g.Files, g.Documents, g.Schema, g.Instances, append(g.Edges, stray))

	r := Validate(g)
	require.Len(t, r.Errors, 1)
	assert.Equal(t,
		"edge asmith -[KNOWS]-> jdoe is declared in people/jdoe.yaml but must live in people/asmith.yaml, the file of its source instance",
		r.Errors[0].Message)
}

func TestValidate_Cardinality(t *testing.T) {
	t.Run("single edge passes", func(t *testing.T) {
		r := validate(t, map[string]string{
			"people/asmith.yaml": person("asmith", "      components:\n        contact: {email: a@b.c}\n      relations:\n        LEADS: zulu\n"),
		})
		assert.Empty(t, r.Errors)
	})

	t.Run("oto exceeded once", func(t *testing.T) {
		r := validate(t, map[string]string{
			"people/asmith.yaml": person("asmith", "      components:\n        contact: {email: a@b.c}\n      relations:\n        LEADS: [zulu, zulu]\n"),
		})
		require.Len(t, r.Errors, 1)
		assert.Equal(t, CategoryCardinality, r.Errors[0].Category)
		assert.Equal(t, `relation LEADS (oto) allows at most 1 edge(s) from "asmith", found 2`, r.Errors[0].Message)
		assert.Equal(t, "people/asmith.yaml", r.Errors[0].Source)
	})

	t.Run("mto grouped by source", func(t *testing.T) {
		r := validate(t, map[string]string{
			"people/asmith.yaml": person("asmith", "      components:\n        contact: {email: a@b.c}\n      relations:\n        MEMBER_OF: [zulu, zulu, zulu]\n"),
		})
		require.Len(t, r.Errors, 1)
		assert.Contains(t, r.Errors[0].Message, "found 3")
	})

	t.Run("mtm unbounded", func(t *testing.T) {
		r := validate(t, map[string]string{
			"people/asmith.yaml": person("asmith", "      components:\n        contact: {email: a@b.c}\n      relations:\n        KNOWS: [jdoe, jdoe, jdoe]\n"),
		})
		assert.Empty(t, r.Errors)
	})
}

func TestReport_Issues(t *testing.T) {
	r := &Report{
		Errors:   []Issue{{Severity: SeverityError, Message: "e"}},
		Warnings: []Issue{{Severity: SeverityWarning, Message: "w"}},
	}
	assert.Equal(t, []string{"e", "w"}, messages(r.Issues()))
	assert.False(t, r.Passed(false))
}
