package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/patrace/patrace/internal/model"
)

// LoadCase reads one case file (JSON or YAML by extension). The note text
// becomes the run's immutable SourceText; every span in the run points
// into it.
func LoadCase(path string) (model.Case, error) {
	var c model.Case

	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read case file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &c)
	default:
		err = json.Unmarshal(data, &c)
	}
	if err != nil {
		return c, fmt.Errorf("parse case file %s: %w", path, err)
	}

	if c.CaseID == "" {
		return c, fmt.Errorf("case file %s: missing case_id", path)
	}
	if c.NoteText == "" {
		return c, fmt.Errorf("case file %s: missing note_text", path)
	}
	return c, nil
}
