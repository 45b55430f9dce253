package models

// Referenceable is anything a reference can point at. The set of
// implementations is closed: Asset, Note, Heading and Block.
type Referenceable interface {
	// RefPath returns the vault-relative path of the owning file.
	RefPath() string
	// TargetKind returns the discriminator of the concrete type.
	TargetKind() TargetKind

	referenceable()
}

// TargetKind names a Referenceable variant.
type TargetKind string

// Target kinds.
const (
	TargetAsset   TargetKind = "asset"
	TargetNote    TargetKind = "note"
	TargetHeading TargetKind = "heading"
	TargetBlock   TargetKind = "block"
)

// BlockKind names the construct a block identifier was attached to.
type BlockKind string

// Block kinds.
const (
	BlockInlineParagraph BlockKind = "inline_paragraph"
	BlockInlineListItem  BlockKind = "inline_list_item"
	BlockParagraph       BlockKind = "paragraph"
	BlockList            BlockKind = "list"
	BlockBlockQuote      BlockKind = "blockquote"
	BlockTable           BlockKind = "table"
)

// Asset is any non-Markdown file in the vault.
type Asset struct {
	Path string
}

// Note is a Markdown file. Children hold its headings and blocks in
// document order.
type Note struct {
	Path     string
	Children []Referenceable
}

// Heading is addressable by a chain of heading texts.
type Heading struct {
	Path  string
	Level int
	Text  string
	Range ByteRange
}

// Block is addressable by an explicit ^identifier marker.
type Block struct {
	Path       string
	Identifier string
	Kind       BlockKind
	Range      ByteRange
}

func (a Asset) RefPath() string   { return a.Path }
func (n Note) RefPath() string    { return n.Path }
func (h Heading) RefPath() string { return h.Path }
func (b Block) RefPath() string   { return b.Path }

func (Asset) TargetKind() TargetKind   { return TargetAsset }
func (Note) TargetKind() TargetKind    { return TargetNote }
func (Heading) TargetKind() TargetKind { return TargetHeading }
func (Block) TargetKind() TargetKind   { return TargetBlock }

func (Asset) referenceable()   {}
func (Note) referenceable()    {}
func (Heading) referenceable() {}
func (Block) referenceable()   {}

// Headings returns the heading children of n in document order.
func (n Note) Headings() []Heading {
	var out []Heading
	for _, c := range n.Children {
		if h, ok := c.(Heading); ok {
			out = append(out, h)
		}
	}
	return out
}

// Blocks returns the block children of n carrying identifier, in document order.
func (n Note) Blocks(identifier string) []Block {
	var out []Block
	for _, c := range n.Children {
		if b, ok := c.(Block); ok && b.Identifier == identifier {
			out = append(out, b)
		}
	}
	return out
}

// Clone returns a copy of r that shares no mutable state with it.
func Clone(r Referenceable) Referenceable {
	if n, ok := r.(Note); ok {
		children := make([]Referenceable, len(n.Children))
		copy(children, n.Children)
		return Note{Path: n.Path, Children: children}
	}
	return r
}

// Target is a flat, serialisable description of a Referenceable.
type Target struct {
	Kind       TargetKind `json:"kind"`
	Path       string     `json:"path"`
	Text       string     `json:"text,omitempty"`
	Level      int        `json:"level,omitempty"`
	Identifier string     `json:"identifier,omitempty"`
	BlockKind  BlockKind  `json:"block_kind,omitempty"`
	Range      *ByteRange `json:"range,omitempty"`
}

// Describe flattens r into a Target.
func Describe(r Referenceable) Target {
	switch v := r.(type) {
	case Heading:
		rng := v.Range
		return Target{Kind: TargetHeading, Path: v.Path, Text: v.Text, Level: v.Level, Range: &rng}
	case Block:
		rng := v.Range
		return Target{Kind: TargetBlock, Path: v.Path, Identifier: v.Identifier, BlockKind: v.Kind, Range: &rng}
	case Note:
		return Target{Kind: TargetNote, Path: v.Path}
	case Asset:
		return Target{Kind: TargetAsset, Path: v.Path}
	}
	return Target{}
}

// Label returns a short human-readable fragment naming t inside its file.
func (t Target) Label() string {
	switch t.Kind {
	case TargetHeading:
		return t.Text
	case TargetBlock:
		return "^" + t.Identifier
	}
	return ""
}
