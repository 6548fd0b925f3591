// Package metadata derives field values for uploaded assets from local
// file properties. Mappings key an extraction token naming the property by
// the remote field definition id its value is written to.
package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Supported extraction tokens.
const (
	TokenFilename  = "filename"
	TokenStem      = "stem"
	TokenExtension = "extension"
	TokenSize      = "size"
	TokenModified  = "modified"
)

// Field is one extracted metadata value bound to a remote field definition.
type Field struct {
	FieldDefinitionID string
	Value             string
}

// Extract resolves each mapping token against the file at path. Unknown
// tokens are an error so config typos surface immediately instead of
// silently writing empty values.
func Extract(path string, mappings map[string]string) ([]Field, error) {
	if len(mappings) == 0 {
		return nil, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	fields := make([]Field, 0, len(mappings))
	for token, fieldID := range mappings {
		value, err := resolve(path, info.Size(), info.ModTime(), token)
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{FieldDefinitionID: fieldID, Value: value})
	}
	return fields, nil
}

func resolve(path string, size int64, modified time.Time, token string) (string, error) {
	base := filepath.Base(path)
	switch strings.ToLower(strings.TrimSpace(token)) {
	case TokenFilename:
		return base, nil
	case TokenStem:
		return strings.TrimSuffix(base, filepath.Ext(base)), nil
	case TokenExtension:
		return strings.TrimPrefix(filepath.Ext(base), "."), nil
	case TokenSize:
		return strconv.FormatInt(size, 10), nil
	case TokenModified:
		return modified.UTC().Format(time.RFC3339), nil
	default:
		return "", fmt.Errorf("unknown metadata token %q", token)
	}
}
