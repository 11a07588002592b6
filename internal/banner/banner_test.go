package banner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/distbuilder/internal/config"
	"git.home.luguber.info/inful/distbuilder/internal/errors"
)

func fixedClock(year int, month time.Month, day int) func() time.Time {
	return func() time.Time {
		return time.Date(year, month, day, 15, 4, 5, 0, time.UTC)
	}
}

func newTestService(t *testing.T, metadata, template string) *Service {
	t.Helper()
	dir := t.TempDir()

	paths := config.Paths{
		SourceRoot:      filepath.Join(dir, "src"),
		PackageMetadata: filepath.Join(dir, "package.json"),
		HeaderTemplate:  filepath.Join(dir, "HEADER.tmpl"),
		HeaderOutfile:   filepath.Join(dir, "dist", "HEADER.txt"),
		VersionFragment: filepath.Join(dir, "src", "version"+config.GeneratedSuffix),
	}
	if metadata != "" {
		require.NoError(t, os.WriteFile(paths.PackageMetadata, []byte(metadata), 0o644))
	}
	if template != "" {
		require.NoError(t, os.WriteFile(paths.HeaderTemplate, []byte(template), 0o644))
	}
	return New(paths)
}

func TestCreateSubstitutesVersionAndDate(t *testing.T) {
	svc := newTestService(t,
		`{"name": "lib", "version": "12.0.0"}`,
		"/*! lib v@@version (@@date) */",
	).WithClock(fixedClock(2024, time.January, 1))

	banner, err := svc.Create()
	require.NoError(t, err)
	assert.Equal(t, "/*! lib v12.0.0 (2024-01-01) */", banner)
}

func TestCreateReplacesOnlyFirstOccurrence(t *testing.T) {
	svc := newTestService(t,
		`{"version": "3.1.4"}`,
		"@@version @@version @@date @@date",
	).WithClock(fixedClock(2024, time.June, 15))

	banner, err := svc.Create()
	require.NoError(t, err)
	assert.Equal(t, "3.1.4 @@version 2024-06-15 @@date", banner)
}

func TestCreateUsesUTCDate(t *testing.T) {
	svc := newTestService(t, `{"version": "1.0.0"}`, "@@date")
	// 23:30 in UTC+10 is already the next day locally; the banner must
	// still carry the UTC date.
	svc.WithClock(func() time.Time {
		loc := time.FixedZone("UTC+10", 10*3600)
		return time.Date(2024, time.March, 2, 9, 30, 0, 0, loc)
	})

	banner, err := svc.Create()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", banner)
}

func TestVersionMissingMetadataFile(t *testing.T) {
	svc := newTestService(t, "", "@@version")

	_, err := svc.Version()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfig))
}

func TestVersionMalformedMetadata(t *testing.T) {
	svc := newTestService(t, "{not json", "@@version")

	_, err := svc.Version()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfig))
}

func TestVersionEmptyField(t *testing.T) {
	svc := newTestService(t, `{"name": "lib"}`, "@@version")

	_, err := svc.Version()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfig))
}

func TestWriteVersionFragment(t *testing.T) {
	svc := newTestService(t, `{"version": "2.5.0"}`, "")

	require.NoError(t, svc.WriteVersionFragment())

	data, err := os.ReadFile(svc.paths.VersionFragment)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "export const version = '2.5.0'")
	assert.Contains(t, content, "automatically generated")
}

func TestWriteVersionFragmentPropagatesVersionError(t *testing.T) {
	svc := newTestService(t, "", "")

	err := svc.WriteVersionFragment()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfig))
	assert.NoFileExists(t, svc.paths.VersionFragment)
}

func TestWriteHeaderCreatesOutputRoot(t *testing.T) {
	svc := newTestService(t, `{"version": "1.0.0"}`, "banner text")

	require.NoError(t, svc.WriteHeader("banner text"))

	data, err := os.ReadFile(svc.paths.HeaderOutfile)
	require.NoError(t, err)
	assert.Equal(t, "banner text", string(data))
}

func TestCommitOutsideRepository(t *testing.T) {
	svc := newTestService(t, `{"version": "1.0.0"}`, "")
	// The temp dir is not a git checkout; the commit hash is best effort.
	assert.Equal(t, "", svc.Commit())
}
