package archive

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// The replacement character _ is part of the allowed set.
var safeName = regexp.MustCompile(`^[A-Za-z0-9._-]*$`)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.final (v2).zip", "report.final__v2_.zip"},
		{"plain-name.json", "plain-name.json"},
		{"", ""},
		{"a b/c\\d", "a_b_c_d"},
		{"café.txt", "caf_.txt"},
		{"rocket🚀.txt", "rocket__.txt"},
		{"../../etc/passwd", ".._.._etc_passwd"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFileName(tt.in))
		})
	}
}

func TestSanitizeFileName_TotalAndIdempotent(t *testing.T) {
	inputs := []string{
		"report.final (v2).zip",
		"日本語のファイル.pdf",
		"tab\tnew\nline",
		"quotes\"and'apostrophes",
		"\xff\xfe invalid utf8",
		"emoji 😀 mix 🎉.tar.gz",
		"already_safe-1.2.3",
	}
	for _, in := range inputs {
		once := SanitizeFileName(in)
		assert.Regexp(t, safeName, once, "input %q", in)
		assert.Equal(t, once, SanitizeFileName(once), "re-sanitizing %q changed it", in)
	}
}

func TestTimestamp(t *testing.T) {
	ts := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-05T10-00-00-000Z", Timestamp(ts))

	// Non-UTC input is normalized.
	loc := time.FixedZone("X", 2*60*60)
	assert.Equal(t, "2024-03-05T10-00-00-123Z", Timestamp(time.Date(2024, 3, 5, 12, 0, 0, 123_000_000, loc)))
}

func TestBackupFileName(t *testing.T) {
	ts := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "backup-2024-03-05T10-00-00-000Z-report.final__v2_.zip",
		BackupFileName(ts, "report.final (v2).zip"))
}

func TestBackupFileName_SortsChronologically(t *testing.T) {
	earlier := BackupFileName(time.Date(2024, 3, 5, 9, 59, 59, 999_000_000, time.UTC), "b.zip")
	later := BackupFileName(time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), "a.zip")
	assert.Less(t, earlier, later)
}

func TestExportFileName(t *testing.T) {
	ts := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "Alpha-backup-2024-03-05T10-00-00-000Z.json", ExportFileName(ts, "Alpha"))
	assert.Equal(t, "project-backup-2024-03-05T10-00-00-000Z.json", ExportFileName(ts, ""))
}

func TestEscapeQuery(t *testing.T) {
	assert.Equal(t, `Bob\'s \\ stuff`, escapeQuery(`Bob's \ stuff`))
}
