package selector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"queryresolve/internal/models"
)

// JSONFileFallback is the default SchemaFallbackLoader: one
// "<database_id>.json" file per database under Dir, holding a
// json.Marshal'd models.DatabaseInfo (the same shape the cache's own
// description_json layer produces), matching the teacher's convention of
// a pre-generated rich-context file per database (contexts/sqlite/<db>.json)
// read when the live database can't be reached.
type JSONFileFallback struct {
	Dir string
}

// NewJSONFileFallback builds a JSONFileFallback rooted at dir.
func NewJSONFileFallback(dir string) *JSONFileFallback {
	return &JSONFileFallback{Dir: dir}
}

// Load reads Dir/<databaseID>.json and decodes it into a DatabaseInfo.
func (f *JSONFileFallback) Load(databaseID string) (*models.DatabaseInfo, error) {
	path := filepath.Join(f.Dir, databaseID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("selector: reading fallback schema %q: %w", path, err)
	}
	var info models.DatabaseInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("selector: parsing fallback schema %q: %w", path, err)
	}
	return &info, nil
}
