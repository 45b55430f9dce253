package mcpserver

// LinkSyntax describes the destination grammar the resolver understands.
// It is served to MCP clients so they can build destinations for
// resolve_destination and read outline results.
const LinkSyntax = `# Vault Link Syntax

A reference is written in one of three forms:

- Wikilink: ` + "`[[file#Heading|display]]`" + `
- Markdown link: ` + "`[display](file.md#Heading)`" + ` (percent-encoded paths are decoded)
- Embed: ` + "`![[file]]`" + ` or ` + "`![alt](file.png)`" + `

## Destination

    file[#Heading[#Subheading...]] | file#^block-id | #Heading | #^block-id

1. The file part is matched against vault paths. ".md" is appended when the
   file part has no extension.
2. An exact path match wins. Otherwise the path components of the file part
   must appear, in order, within a vault path (e.g. "Note" matches "dir/Note.md").
   The first matching path in walk order wins.
3. An empty file part refers to the note the link is written in.
4. Heading chains must be nested: "A#B" finds a heading B below a heading A.
   Duplicate headings are disambiguated by trying every candidate.
5. "^id" addresses a block marker. Identifiers use letters, digits and "-".
6. When a heading or block cannot be found, the link falls back to the whole
   note. When the file cannot be found, the reference is unresolved.
7. Fragments on links to non-Markdown files are ignored.
`
