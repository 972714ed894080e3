package notion

import "unicode/utf8"

// Kind names the typed property representations the store understands
type Kind string

const (
	KindTitle    Kind = "title"
	KindRichText Kind = "rich_text"
	KindNumber   Kind = "number"
	KindCheckbox Kind = "checkbox"
	KindSelect   Kind = "select"
	KindStatus   Kind = "status"
	KindDate     Kind = "date"
	KindRelation Kind = "relation"
)

// maxTextLength is the store's limit for a single rich text segment
const maxTextLength = 2000

type TextContent struct {
	Content string `json:"content"`
}

type RichText struct {
	Type string      `json:"type"`
	Text TextContent `json:"text"`
}

type SelectOption struct {
	Name string `json:"name"`
}

type DateValue struct {
	Start string `json:"start"`
}

type RelationRef struct {
	ID string `json:"id"`
}

// PropertyValue is one typed property. Exactly one field is set.
type PropertyValue struct {
	Title    []RichText    `json:"title,omitempty"`
	RichText []RichText    `json:"rich_text,omitempty"`
	Number   *float64      `json:"number,omitempty"`
	Checkbox *bool         `json:"checkbox,omitempty"`
	Select   *SelectOption `json:"select,omitempty"`
	Status   *SelectOption `json:"status,omitempty"`
	Date     *DateValue    `json:"date,omitempty"`
	Relation []RelationRef `json:"relation,omitempty"`
}

// Properties maps target field names to typed values.
// encoding/json sorts map keys, so marshalling is deterministic.
type Properties map[string]PropertyValue

// Clone returns a shallow copy that can be extended without touching the original
func (p Properties) Clone() Properties {
	out := make(Properties, len(p)+2)
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Kind reports which representation the value carries
func (v PropertyValue) Kind() Kind {
	switch {
	case v.Title != nil:
		return KindTitle
	case v.RichText != nil:
		return KindRichText
	case v.Number != nil:
		return KindNumber
	case v.Checkbox != nil:
		return KindCheckbox
	case v.Select != nil:
		return KindSelect
	case v.Status != nil:
		return KindStatus
	case v.Date != nil:
		return KindDate
	case v.Relation != nil:
		return KindRelation
	default:
		return ""
	}
}

// PlainText returns the text content for title and rich text values
func (v PropertyValue) PlainText() string {
	segments := v.RichText
	if v.Title != nil {
		segments = v.Title
	}
	var out string
	for _, s := range segments {
		out += s.Text.Content
	}
	return out
}

func TitleValue(content string) PropertyValue {
	return PropertyValue{Title: textSegments(content)}
}

func RichTextValue(content string) PropertyValue {
	return PropertyValue{RichText: textSegments(content)}
}

func NumberValue(n float64) PropertyValue {
	return PropertyValue{Number: &n}
}

func CheckboxValue(b bool) PropertyValue {
	return PropertyValue{Checkbox: &b}
}

func SelectValue(name string) PropertyValue {
	return PropertyValue{Select: &SelectOption{Name: name}}
}

func StatusValue(name string) PropertyValue {
	return PropertyValue{Status: &SelectOption{Name: name}}
}

func DateValueOf(start string) PropertyValue {
	return PropertyValue{Date: &DateValue{Start: start}}
}

func RelationValue(ids ...RecordID) PropertyValue {
	refs := make([]RelationRef, len(ids))
	for i, id := range ids {
		refs[i] = RelationRef{ID: id.String()}
	}
	return PropertyValue{Relation: refs}
}

func textSegments(content string) []RichText {
	if utf8.RuneCountInString(content) > maxTextLength {
		content = string([]rune(content)[:maxTextLength])
	}
	return []RichText{{Type: "text", Text: TextContent{Content: content}}}
}
