package dsl

import (
	"fmt"
	"io"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	dslLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r]+`},
		{Name: "Newline", Pattern: `\n+`},
		{Name: "BlockComment", Pattern: `/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
		{Name: "LineComment", Pattern: `//[^\n]*`},
		{Name: "Color", Pattern: `#(?:[0-9A-Fa-f]{8}|[0-9A-Fa-f]{6}|[0-9A-Fa-f]{3})\b`},
		{Name: "Number", Pattern: `(?:\d+\.\d+|\.\d+|\d+)(?:pt|px|mm|cm|in|%)?`},
		{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
		{Name: "Symbol", Pattern: `[-:;]`},
		{Name: "LBrace", Pattern: `{`},
		{Name: "RBrace", Pattern: `}`},
	})

	jobParser = participle.MustBuild[Job](
		participle.Lexer(dslLexer),
		participle.Elide("Whitespace", "LineComment", "BlockComment"),
	)
)

// Job is the root AST node of a .jacket file.
type Job struct {
	Pos     lexer.Position `parser:"" json:"-"`
	Name    string         `parser:"Newline* 'job' @Ident"`
	Version string         `parser:"@Ident?"`
	Entries []*Entry       `parser:"'{' Newline* ( @@ ( ';' | Newline )* )* '}' Newline*"`
}

// Entry is one top-level statement inside a job.
type Entry struct {
	Artwork  *Block         `parser:"  'artwork' @@"`
	Viewport *Block         `parser:"| 'viewport' @@"`
	Layout   *Block         `parser:"| 'layout' @@"`
	Caption  *StringLiteral `parser:"| 'caption' @String"`
	Book     *BookEntry     `parser:"| @@"`
}

// Kind returns the human-readable entry type.
func (e *Entry) Kind() string {
	switch {
	case e == nil:
		return "unknown"
	case e.Artwork != nil:
		return "artwork"
	case e.Viewport != nil:
		return "viewport"
	case e.Layout != nil:
		return "layout"
	case e.Caption != nil:
		return "caption"
	case e.Book != nil:
		return "book"
	default:
		return "unknown"
	}
}

// BookEntry declares one book; ID is optional.
type BookEntry struct {
	Pos   lexer.Position `parser:"" json:"-"`
	ID    string         `parser:"'book' @Ident?"`
	Block *Block         `parser:"@@"`
}

// Block is a delimited list of properties.
type Block struct {
	Properties []*Property `parser:"'{' Newline* ( @@ ( ';' | Newline )* )* '}'"`
}

// Get returns the last property with the given key.
func (b *Block) Get(key string) (*Property, bool) {
	if b == nil {
		return nil, false
	}
	for i := len(b.Properties) - 1; i >= 0; i-- {
		if b.Properties[i].Key == key {
			return b.Properties[i], true
		}
	}
	return nil, false
}

// Property uses colon syntax (key: value).
type Property struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Key   string         `parser:"@Ident"`
	Value *Value         `parser:"':' @@"`
}

// Value represents a property value.
type Value struct {
	String *StringLiteral `parser:"  @String"`
	Number *string        `parser:"| @( '-'? Number )"`
	Color  *string        `parser:"| @Color"`
	Ident  *string        `parser:"| @Ident"`
}

// Raw returns the value as written, without quotes.
func (v *Value) Raw() string {
	switch {
	case v == nil:
		return ""
	case v.String != nil:
		return string(*v.String)
	case v.Number != nil:
		return *v.Number
	case v.Color != nil:
		return *v.Color
	case v.Ident != nil:
		return *v.Ident
	default:
		return ""
	}
}

// StringLiteral unquotes Go-style strings on capture.
type StringLiteral string

// Capture implements participle.Capture.
func (s *StringLiteral) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("string literal capture requires value")
	}
	val, err := strconv.Unquote(values[0])
	if err != nil {
		return err
	}
	*s = StringLiteral(val)
	return nil
}

// Parse parses a job file from an io.Reader. filename is used in error positions.
func Parse(filename string, r io.Reader) (*Job, error) {
	return jobParser.Parse(filename, r)
}

// ParseString parses job file content from a string.
func ParseString(input string) (*Job, error) {
	return jobParser.ParseString("", input)
}
