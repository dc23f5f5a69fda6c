package storage

import (
	"fmt"

	"github.com/ruteri/slb-bond-backend/interfaces"
)

// contentPrefixes maps each content type to its namespace in a backend.
var contentPrefixes = map[interfaces.ContentType]string{
	interfaces.EventType:  "events",
	interfaces.ReportType: "reports",
}

func contentPrefix(contentType interfaces.ContentType) (string, error) {
	prefix, ok := contentPrefixes[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported content type: %v", contentType)
	}
	return prefix, nil
}

// verifyContent checks that data hashes to id.
func verifyContent(id interfaces.ContentID, data []byte) error {
	if got := interfaces.ComputeID(data); got != id {
		return fmt.Errorf("%w: content %s hashes to %s", interfaces.ErrHashMismatch, id, got)
	}
	return nil
}
