package mcpserver

// FormatURI is the resource URI of FormatContract.
const FormatURI = "onto://format"

// FormatContract describes the storage-file format that LLM consumers
// should follow when creating or updating files.
const FormatContract = `# Storage File Format Contract

Every file in the store is YAML (` + "`.yaml`, `.yml`" + `, one or more documents separated
by ` + "`---`" + `) or Markdown (` + "`.md`" + `, YAML frontmatter between leading ` + "`---`" + ` fences,
then a body). Every document MUST declare:

` + "```" + `yaml
apiVersion: agent/v1
kind: Ontology
` + "```" + `

and at least one of ` + "`schema:`" + ` or ` + "`spec:`" + `.

## Schema

` + "```" + `yaml
schema:
  namespaces: [corp]
  components:
    Contact:                       # ProperCase
      email: {type: string, required: true}
      tags: {type: "string[]"}     # string, bool, date, ref and their [] forms
      manager: {type: ref, allowedTypes: [Person]}
  classes:
    Person:                        # ProperCase
      contact: Contact             # camelCase local name -> component
    Team: {}                       # type marker, no components
  relations:
    MEMBER_OF:                     # UPPER_SNAKE
      domain: Person               # "*" for any class
      range: Team
      cardinality: mto             # oto, otm, mto or mtm
      qualifiers:
        role: {type: string}
` + "```" + `

` + "`LINKS_TO`" + ` is reserved and must not be declared.

## Instances

Exactly one instance per file:

` + "```" + `yaml
spec:
  classes:
    - _class: Person
      _id: jdoe
      _namespace: corp
      components:
        contact:
          email: jdoe@company.com
          manager: asmith:Person   # refs are "id:Class"
      relations:
        MEMBER_OF:
          - {_to: zulu, role: lead}
        KNOWS: asmith              # id string or list of ids
` + "```" + `

## Rules

1. Only ` + "`_class`, `_id`, `_namespace`, `_source`, `components`, `relations`" + ` may appear
   at the instance root. Properties live inside a declared component.
2. ` + "`_id`" + ` values are unique across the store.
3. Edges are declared inside the source instance's file. Top-level ` + "`spec.relations`" + `
   is not supported.
4. Relation targets are ids or ` + "`{_to: id, <qualifier>: value}`" + ` objects, never inline instances.
5. Dates are ` + "`YYYY-MM-DD`" + `.
6. Markdown bodies may link instances with ` + "`[[Class/id]]`" + `; these become implicit
   ` + "`LINKS_TO`" + ` edges and the target must exist.
7. Writes are validated against the whole store and rolled back if they break it.
`
