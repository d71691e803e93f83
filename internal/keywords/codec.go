package keywords

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// DecodeItems parses a JSON array of strings. A JSON null yields no items.
func DecodeItems(data []byte) ([]string, error) {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, eris.Wrap(err, "decoding items: expected a JSON array of strings")
	}
	return items, nil
}

// EncodeKeywords renders the item to keywords mapping as a JSON object.
func EncodeKeywords(keywords map[string][]string) ([]byte, error) {
	if keywords == nil {
		keywords = map[string][]string{}
	}

	data, err := json.Marshal(keywords)
	if err != nil {
		return nil, eris.Wrap(err, "encoding keywords")
	}
	return data, nil
}

type errorPayload struct {
	Error string `json:"error"`
}

func encodeError(err error) []byte {
	data, marshalErr := json.Marshal(errorPayload{Error: err.Error()})
	if marshalErr != nil {
		return []byte(`{"error":"internal error"}`)
	}
	return data
}
