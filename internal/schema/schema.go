// Package schema validates and normalizes the front matter of authored posts.
package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	MaxTitleLength       = 99
	MaxDescriptionLength = 999
)

const (
	titleLengthTag       = "title_length"
	descriptionLengthTag = "description_length"
)

// Metadata is the normalized front matter of one post.
type Metadata struct {
	Title       string     `yaml:"title" validate:"required,title_length"`
	Description string     `yaml:"description" validate:"description_length"`
	Date        time.Time  `yaml:"date"`
	Updated     *time.Time `yaml:"updated"`
	Published   bool       `yaml:"published"`
	Locale      string     `yaml:"locale" validate:"required,oneof=zh en"`
	Tags        []string   `yaml:"tags" validate:"dive,required"`
	Categories  []string   `yaml:"categories" validate:"dive,required"`
	Author      string     `yaml:"author" validate:"required"`
	Cover       string     `yaml:"cover"`
}

// Document is a validated post ready for compilation.
type Document struct {
	Path     string
	Meta     Metadata
	Body     string
	BodyLine int
}

// Validator parses and validates raw post files.
type Validator struct {
	validate      *validator.Validate
	defaultAuthor string
}

// New creates a validator that fills a missing author with defaultAuthor.
func New(defaultAuthor string) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterAlias(titleLengthTag, fmt.Sprintf("max=%d", MaxTitleLength))
	v.RegisterAlias(descriptionLengthTag, fmt.Sprintf("max=%d", MaxDescriptionLength))
	return &Validator{validate: v, defaultAuthor: defaultAuthor}
}

// Parse splits, decodes, validates and normalizes one document. All field
// violations are reported together in a *ValidationError.
func (v *Validator) Parse(path string, raw []byte) (*Document, error) {
	fm, body, bodyLine, err := Split(raw)
	if err != nil {
		return nil, &ValidationError{Path: path, Fields: []FieldError{{Field: "frontmatter", Reason: err.Error()}}}
	}

	meta, errs := v.decode(fm)
	errs = append(errs, v.check(meta)...)
	if len(errs) > 0 {
		return nil, &ValidationError{Path: path, Fields: errs}
	}

	return &Document{Path: path, Meta: *meta, Body: string(body), BodyLine: bodyLine}, nil
}

func (v *Validator) decode(fm []byte) (*Metadata, []FieldError) {
	meta := &Metadata{
		Published:  true,
		Author:     v.defaultAuthor,
		Tags:       []string{},
		Categories: []string{},
	}

	var root yaml.Node
	if err := yaml.Unmarshal(fm, &root); err != nil {
		return meta, []FieldError{{Field: "frontmatter", Reason: err.Error()}}
	}
	if root.Kind == 0 {
		// Empty block: every required field is reported by check.
		return meta, []FieldError{{Field: "date", Reason: "is required"}}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) != 1 || root.Content[0].Kind != yaml.MappingNode {
		return meta, []FieldError{{Field: "frontmatter", Reason: "must be a mapping"}}
	}

	var errs []FieldError
	seenDate := false
	mapping := root.Content[0]
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, value := mapping.Content[i].Value, mapping.Content[i+1]
		if isNull(value) {
			continue
		}

		var err error
		switch key {
		case "title":
			meta.Title, err = scalarString(value)
		case "description":
			meta.Description, err = scalarString(value)
		case "date":
			seenDate = true
			meta.Date, err = isoDate(value)
		case "updated":
			var t time.Time
			if t, err = isoDate(value); err == nil {
				meta.Updated = &t
			}
		case "published":
			meta.Published, err = boolean(value)
		case "locale":
			meta.Locale, err = scalarString(value)
		case "tags":
			meta.Tags, err = stringSet(value)
		case "categories":
			meta.Categories, err = stringSet(value)
		case "author":
			meta.Author, err = scalarString(value)
		case "cover":
			meta.Cover, err = scalarString(value)
		}
		if err != nil {
			errs = append(errs, FieldError{Field: key, Reason: fmt.Sprintf("line %d: %v", value.Line, err)})
		}
	}

	if !seenDate {
		errs = append(errs, FieldError{Field: "date", Reason: "is required"})
	}
	return meta, errs
}

func (v *Validator) check(meta *Metadata) []FieldError {
	var errs []FieldError

	if err := v.validate.Struct(meta); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				errs = append(errs, FieldError{Field: fe.Field(), Reason: describe(fe)})
			}
		} else {
			errs = append(errs, FieldError{Field: "frontmatter", Reason: err.Error()})
		}
	}

	if meta.Updated != nil && !meta.Date.IsZero() && meta.Updated.Before(meta.Date) {
		errs = append(errs, FieldError{
			Field:  "updated",
			Reason: fmt.Sprintf("%s is before date %s", meta.Updated.Format(time.DateOnly), meta.Date.Format(time.DateOnly)),
		})
	}
	return errs
}

func describe(fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fmt.Sprint(fe.Value()))
	default:
		return fmt.Sprintf("failed %q validation", fe.ActualTag())
	}
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

// scalarString accepts only string scalars: plain words or quoted values.
// Numbers, booleans and dates are type mismatches.
func scalarString(n *yaml.Node) (string, error) {
	if n.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("expected a string, got %s", kindName(n))
	}
	if n.Tag != "!!str" {
		return "", fmt.Errorf("expected a string, got %s %q", kindName(n), n.Value)
	}
	return n.Value, nil
}

var dateLayouts = []string{time.DateOnly, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

func isoDate(n *yaml.Node) (time.Time, error) {
	if n.Kind != yaml.ScalarNode || (n.Tag != "!!str" && n.Tag != "!!timestamp") {
		return time.Time{}, fmt.Errorf("expected a date, got %s", kindName(n))
	}
	s := n.Value
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func boolean(n *yaml.Node) (bool, error) {
	var b bool
	if err := n.Decode(&b); err == nil {
		return b, nil
	}
	if n.Kind == yaml.ScalarNode {
		if b, err := strconv.ParseBool(strings.TrimSpace(n.Value)); err == nil {
			return b, nil
		}
	}
	return false, fmt.Errorf("expected a boolean, got %q", n.Value)
}

// stringSet decodes a sequence of strings, collapsing duplicates while keeping
// the first occurrence order.
func stringSet(n *yaml.Node) ([]string, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("expected a list of strings, got %s", kindName(n))
	}
	out := make([]string, 0, len(n.Content))
	seen := make(map[string]bool, len(n.Content))
	for _, item := range n.Content {
		s, err := scalarString(item)
		if err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.SequenceNode:
		return "a list"
	case yaml.MappingNode:
		return "a mapping"
	case yaml.AliasNode:
		return "an alias"
	}
	switch n.Tag {
	case "!!int", "!!float":
		return "a number"
	case "!!bool":
		return "a boolean"
	case "!!timestamp":
		return "a date"
	}
	return "a scalar"
}
