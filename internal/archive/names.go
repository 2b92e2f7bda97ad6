package archive

import (
	"strings"
	"time"
)

// timestampLayout is ISO-8601 UTC with milliseconds.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp renders t for use inside a file name: ISO-8601 UTC with ':' and
// '.' replaced by '-', so names sort chronologically.
func Timestamp(t time.Time) string {
	s := t.UTC().Format(timestampLayout)
	return strings.NewReplacer(":", "-", ".", "-").Replace(s)
}

// SanitizeFileName replaces every character outside [A-Za-z0-9.-] with '_'.
// Characters outside the Basic Multilingual Plane count as two, so the
// output matches names produced by UTF-16 based clients.
func SanitizeFileName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case r > 0xFFFF:
			b.WriteString("__")
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// BackupFileName is the remote name for a manually uploaded artifact:
// backup-<timestamp>-<sanitized original name>.
func BackupFileName(t time.Time, original string) string {
	return "backup-" + Timestamp(t) + "-" + SanitizeFileName(original)
}

// ExportFileName is the remote name for a quick JSON export.
func ExportFileName(t time.Time, projectName string) string {
	if projectName == "" {
		projectName = "project"
	}
	return projectName + "-backup-" + Timestamp(t) + ".json"
}

// escapeQuery quotes a value for use inside a single-quoted Drive query literal.
func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
