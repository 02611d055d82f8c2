package render

import (
	"bytes"
	"encoding/json"
	"fmt"
)

func jsonIndent(dst *bytes.Buffer, data []byte) error {
	if err := json.Indent(dst, bytes.TrimSpace(data), "", "  "); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
