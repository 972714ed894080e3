package mapping

import (
	"fmt"
	"time"

	"github.com/cuongbtq/grow-sync/internal/notion"
)

// Map converts flat fields into typed properties using schema for known names.
// Unknown names are coerced by runtime type. Nil values and empty relations are
// left out so no explicit nulls reach the store.
func Map(fields map[string]any, schema Schema) (notion.Properties, error) {
	props := make(notion.Properties, len(fields))

	for name, value := range fields {
		if value == nil {
			continue
		}

		kind, known := schema[name]
		if !known {
			if v, ok := coerceByType(value); ok {
				props[name] = v
			}
			continue
		}

		v, present, err := coerce(kind, value)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		if present {
			props[name] = v
		}
	}

	return props, nil
}

func coerce(kind notion.Kind, value any) (notion.PropertyValue, bool, error) {
	switch kind {
	case notion.KindTitle, notion.KindRichText, notion.KindSelect, notion.KindStatus:
		s, ok := value.(string)
		if !ok {
			return notion.PropertyValue{}, false, typeError(kind, value)
		}
		switch kind {
		case notion.KindTitle:
			return notion.TitleValue(s), true, nil
		case notion.KindRichText:
			return notion.RichTextValue(s), true, nil
		case notion.KindSelect:
			return notion.SelectValue(s), true, nil
		default:
			return notion.StatusValue(s), true, nil
		}

	case notion.KindNumber:
		n, ok := toFloat(value)
		if !ok {
			return notion.PropertyValue{}, false, typeError(kind, value)
		}
		return notion.NumberValue(n), true, nil

	case notion.KindCheckbox:
		b, ok := value.(bool)
		if !ok {
			return notion.PropertyValue{}, false, typeError(kind, value)
		}
		return notion.CheckboxValue(b), true, nil

	case notion.KindDate:
		s, ok := value.(string)
		if !ok {
			return notion.PropertyValue{}, false, typeError(kind, value)
		}
		if !isDate(s) {
			return notion.PropertyValue{}, false, fmt.Errorf("invalid date %q", s)
		}
		return notion.DateValueOf(s), true, nil

	case notion.KindRelation:
		var urls []string
		switch v := value.(type) {
		case string:
			urls = []string{v}
		case []string:
			urls = v
		default:
			return notion.PropertyValue{}, false, typeError(kind, value)
		}

		ids := make([]notion.RecordID, 0, len(urls))
		for _, u := range urls {
			if u == "" {
				continue
			}
			id, err := notion.ExtractID(u)
			if err != nil {
				return notion.PropertyValue{}, false, err
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			return notion.PropertyValue{}, false, nil
		}
		return notion.RelationValue(ids...), true, nil
	}

	return notion.PropertyValue{}, false, fmt.Errorf("unsupported property kind %q", kind)
}

func coerceByType(value any) (notion.PropertyValue, bool) {
	switch v := value.(type) {
	case string:
		return notion.RichTextValue(v), true
	case bool:
		return notion.CheckboxValue(v), true
	}
	if n, ok := toFloat(value); ok {
		return notion.NumberValue(n), true
	}
	return notion.PropertyValue{}, false
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func isDate(s string) bool {
	if _, err := time.Parse(time.DateOnly, s); err == nil {
		return true
	}
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}

func typeError(kind notion.Kind, value any) error {
	return fmt.Errorf("expected %s value, got %T", kind, value)
}
