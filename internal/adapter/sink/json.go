package sink

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/berfenger/rover2mqtt/internal/core/domain"
)

// JSONLines appends one JSON document per reading.
type JSONLines struct {
	mu  sync.Mutex
	out io.Writer
}

func NewJSONLines(out io.Writer) *JSONLines {
	return &JSONLines{out: out}
}

// OpenJSONFile opens path for appending.
func OpenJSONFile(path string) (*JSONLines, func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return NewJSONLines(f), f.Close, nil
}

func (j *JSONLines) Name() string {
	return "json"
}

func (j *JSONLines) Publish(r domain.Reading) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return json.NewEncoder(j.out).Encode(r)
}
