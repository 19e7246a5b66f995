package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// LocalizedEntry is the text of a LocalizedString in a single language.
type LocalizedEntry struct {
	Lang string
	Text string
}

// LocalizedString maps language codes to display text. Entries keep the
// order they were authored in; the first entry is the fallback language.
type LocalizedString struct {
	entries []LocalizedEntry
}

// NewLocalizedString builds a LocalizedString from lang/text pairs.
//
//	NewLocalizedString("en", "Capital of France?", "hi", "फ्रांस की राजधानी?")
func NewLocalizedString(pairs ...string) LocalizedString {
	var l LocalizedString
	for i := 0; i+1 < len(pairs); i += 2 {
		l.Set(pairs[i], pairs[i+1])
	}
	return l
}

// Set stores text for lang. An existing language keeps its position.
func (l *LocalizedString) Set(lang, text string) {
	for i := range l.entries {
		if l.entries[i].Lang == lang {
			l.entries[i].Text = text
			return
		}
	}
	l.entries = append(l.entries, LocalizedEntry{Lang: lang, Text: text})
}

// Get returns the text stored for lang.
func (l LocalizedString) Get(lang string) (string, bool) {
	for _, e := range l.entries {
		if e.Lang == lang {
			return e.Text, true
		}
	}
	return "", false
}

// Languages returns the language codes in authoring order.
func (l LocalizedString) Languages() []string {
	langs := make([]string, len(l.entries))
	for i, e := range l.entries {
		langs[i] = e.Lang
	}
	return langs
}

// Len returns the number of languages present.
func (l LocalizedString) Len() int { return len(l.entries) }

// Resolve returns the text for lang. A missing or empty translation falls
// back to the first authored language, and an empty value yields "".
func (l LocalizedString) Resolve(lang string) string {
	if text, ok := l.Get(lang); ok && text != "" {
		return text
	}
	if len(l.entries) == 0 {
		return ""
	}
	return l.entries[0].Text
}

// MarshalJSON encodes the value as a JSON object in authoring order.
func (l LocalizedString) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range l.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Lang)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Text)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of lang → text, keeping key order.
func (l *LocalizedString) UnmarshalJSON(data []byte) error {
	l.entries = nil
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("localized string: expected JSON object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		lang, ok := tok.(string)
		if !ok {
			return fmt.Errorf("localized string: unexpected key %v", tok)
		}
		var text string
		if err := dec.Decode(&text); err != nil {
			return fmt.Errorf("localized string %q: %w", lang, err)
		}
		l.Set(lang, text)
	}
	_, err = dec.Token()
	return err
}

// UnmarshalYAML decodes a YAML mapping of lang → text, keeping key order.
func (l *LocalizedString) UnmarshalYAML(node *yaml.Node) error {
	l.entries = nil
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("localized string: expected mapping at line %d", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var text string
		if err := node.Content[i+1].Decode(&text); err != nil {
			return fmt.Errorf("localized string %q: %w", node.Content[i].Value, err)
		}
		l.Set(node.Content[i].Value, text)
	}
	return nil
}

// MarshalYAML encodes the value as a YAML mapping in authoring order.
func (l LocalizedString) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range l.entries {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Lang},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Text},
		)
	}
	return node, nil
}
