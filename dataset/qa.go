// Package dataset reads and writes QA datasets, fills their input context
// from law records and renders them into chat-formatted training text.
package dataset

import (
	"bytes"
	"encoding/json"
)

// QAPair is one question-answer record. Keys this type does not know are
// kept in Extra and written back unchanged.
type QAPair struct {
	ID           string   `json:"id,omitempty"`
	Question     string   `json:"question"`
	Answer       string   `json:"answer"`
	LawReference string   `json:"law_reference"`
	InputContext string   `json:"input_context"`
	Section      string   `json:"section,omitempty"`
	Source       string   `json:"source,omitempty"`
	Model        string   `json:"model,omitempty"`
	NeedsReview  bool     `json:"needs_review,omitempty"`
	Diagnostics  []string `json:"diagnostics,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownKeys = map[string]bool{
	"id": true, "question": true, "answer": true, "law_reference": true,
	"input_context": true, "section": true, "source": true, "model": true,
	"needs_review": true, "diagnostics": true,
}

type qaPairFields QAPair

// UnmarshalJSON decodes the known fields and stashes the rest in Extra.
func (p *QAPair) UnmarshalJSON(data []byte) error {
	var fields qaPairFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k := range all {
		if knownKeys[k] {
			delete(all, k)
		}
	}
	if len(all) == 0 {
		all = nil
	}
	*p = QAPair(fields)
	p.Extra = all
	return nil
}

// MarshalJSON writes the known fields followed by Extra.
func (p QAPair) MarshalJSON() ([]byte, error) {
	data, err := marshal(qaPairFields(p))
	if err != nil || len(p.Extra) == 0 {
		return data, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for k, v := range p.Extra {
		if !knownKeys[k] {
			all[k] = v
		}
	}
	return marshal(all)
}

// marshal encodes v without escaping HTML characters. Go never escapes
// non-ASCII text, so Bangla stays readable in the output.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
