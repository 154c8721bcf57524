package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gihan9a/configdist/internal/config"
	"gihan9a/configdist/internal/notify"
	"gihan9a/configdist/pkg/patchset"
)

type fixture struct {
	dir    string
	target config.Target
}

func newFixture(t *testing.T, dist string, own *string) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir: dir,
		target: config.Target{
			Name: "app",
			Dist: filepath.Join(dir, "config.dist.json"),
			Own:  filepath.Join(dir, "config.json"),
		},
	}
	require.NoError(t, os.WriteFile(f.target.Dist, []byte(dist), 0644))
	if own != nil {
		require.NoError(t, os.WriteFile(f.target.Own, []byte(*own), 0644))
	}
	return f
}

func (f fixture) readOwn(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.target.Own)
	require.NoError(t, err)
	return string(data)
}

func ptr(s string) *string { return &s }

func TestReconcileCreatesOwnFromDist(t *testing.T) {
	dist := "{\n  \"a\": 1,   \"b\": 2\n}\n"
	f := newFixture(t, dist, nil)
	rec := &notify.Recorder{}

	summary, err := New(rec).Reconcile(context.Background(), f.target)
	require.NoError(t, err)

	assert.True(t, summary.Created)
	assert.True(t, summary.Written)
	assert.Equal(t, dist, f.readOwn(t), "own must be a byte copy of dist")

	successes := rec.BySeverity(notify.Success)
	require.Len(t, successes, 1)
	assert.Contains(t, successes[0].Message, "successfully created")
}

func TestReconcileCreatesMissingDirectories(t *testing.T) {
	f := newFixture(t, `{"a":1}`, nil)
	f.target.Own = filepath.Join(f.dir, "nested", "deeper", "config.json")

	_, err := New(nil).Reconcile(context.Background(), f.target)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, f.readOwn(t))
}

func TestReconcileRejectsInvalidTemplate(t *testing.T) {
	f := newFixture(t, "not valid json", nil)
	rec := &notify.Recorder{}

	summary, err := New(rec).Reconcile(context.Background(), f.target)
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, ErrInvalidTemplate)

	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, f.target.Dist, rerr.Path)

	assert.NoFileExists(t, f.target.Own)
	assert.Len(t, rec.BySeverity(notify.Error), 1)
}

func TestReconcileMissingDist(t *testing.T) {
	f := newFixture(t, `{}`, nil)
	f.target.Dist = filepath.Join(f.dir, "missing.dist.json")

	_, err := New(nil).Reconcile(context.Background(), f.target)
	assert.ErrorIs(t, err, ErrReadFailure)
	assert.NoFileExists(t, f.target.Own)
}

func TestReconcileAddsMissingKeys(t *testing.T) {
	f := newFixture(t, `{"a":1,"b":2}`, ptr(`{"a":1}`))
	rec := &notify.Recorder{}

	summary, err := New(rec).Reconcile(context.Background(), f.target)
	require.NoError(t, err)

	assert.False(t, summary.Created)
	assert.True(t, summary.Written)
	assert.Equal(t, []string{"/b"}, summary.Additions.Paths())
	assert.Empty(t, summary.Removals)
	assert.JSONEq(t, `{"a":1,"b":2}`, f.readOwn(t))

	warnings := rec.BySeverity(notify.Warning)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "not up to date")
	assert.Contains(t, warnings[0].Details, "path: /b")
}

func TestReconcileWritesIndentedJSON(t *testing.T) {
	f := newFixture(t, `{"a":1,"b":2}`, ptr(`{"a":1}`))

	_, err := New(nil, WithIndent("    ")).Reconcile(context.Background(), f.target)
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"a\": 1,\n    \"b\": 2\n}\n", f.readOwn(t))
}

func TestReconcileSuggestsRemovals(t *testing.T) {
	own := `{"a":1,"c":3}`
	f := newFixture(t, `{"a":1}`, ptr(own))
	rec := &notify.Recorder{}

	summary, err := New(rec).Reconcile(context.Background(), f.target)
	require.NoError(t, err)

	assert.False(t, summary.Written)
	assert.Empty(t, summary.Additions)
	require.Len(t, summary.Removals, 1)
	assert.Equal(t, "/c", summary.Removals[0].Path)
	assert.EqualValues(t, 3, summary.Removals[0].Value)
	assert.Equal(t, own, f.readOwn(t), "removals must never be applied")

	assert.Len(t, rec.BySeverity(notify.Info), 1, "up to date")
	warnings := rec.BySeverity(notify.Warning)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "removal suggestions")
	assert.Contains(t, warnings[0].Details, "path: /c")
}

func TestReconcileAdditionsAndRemovals(t *testing.T) {
	f := newFixture(t,
		`{"server":{"host":"localhost","port":8080},"debug":false}`,
		ptr(`{"server":{"host":"example.org","legacy":true}}`),
	)
	rec := &notify.Recorder{}

	summary, err := New(rec).Reconcile(context.Background(), f.target)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"/server/port", "/debug"}, summary.Additions.Paths())
	assert.Equal(t, []string{"/server/legacy"}, summary.Removals.Paths())
	assert.Equal(t, 1, summary.Replaced)

	// Changed values and local extras are kept
	assert.JSONEq(t,
		`{"server":{"host":"example.org","legacy":true,"port":8080},"debug":false}`,
		f.readOwn(t),
	)
	assert.Len(t, rec.BySeverity(notify.Warning), 2)
	assert.Empty(t, rec.BySeverity(notify.Info))
}

func TestReconcileAddsNestedObjects(t *testing.T) {
	f := newFixture(t,
		`{"a":1,"db":{"primary":{"host":"db","pool":{"max":10}}},"list":[1,2,3]}`,
		ptr(`{"a":1,"list":[1]}`),
	)

	_, err := New(nil).Reconcile(context.Background(), f.target)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"a":1,"db":{"primary":{"host":"db","pool":{"max":10}}},"list":[1,2,3]}`,
		f.readOwn(t),
	)
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newFixture(t, `{"a":1,"b":{"c":[true,null]}}`, ptr(`{"a":1,"x":"mine"}`))
	r := New(nil)

	first, err := r.Reconcile(context.Background(), f.target)
	require.NoError(t, err)
	require.NotEmpty(t, first.Additions)
	afterFirst := f.readOwn(t)

	second, err := r.Reconcile(context.Background(), f.target)
	require.NoError(t, err)
	assert.Empty(t, second.Additions)
	assert.False(t, second.Written)
	assert.Equal(t, afterFirst, f.readOwn(t))
	assert.Equal(t, []string{"/x"}, second.Removals.Paths())
}

func TestReconcileUpToDate(t *testing.T) {
	f := newFixture(t, `{"a":1}`, ptr(`{"a":1}`))
	rec := &notify.Recorder{}

	summary, err := New(rec).Reconcile(context.Background(), f.target)
	require.NoError(t, err)
	assert.False(t, summary.Drift())
	assert.Equal(t, []notify.Record{{
		Severity: notify.Info,
		Message:  "[app] File `" + f.target.Own + "` is up to date.",
	}}, rec.Records())
}

func TestReconcileParseFailures(t *testing.T) {
	tests := []struct {
		name     string
		dist     string
		own      string
		wantPath func(config.Target) string
	}{
		{
			name:     "malformed own",
			dist:     `{"a":1}`,
			own:      `{"a":`,
			wantPath: func(t config.Target) string { return t.Own },
		},
		{
			name:     "malformed dist",
			dist:     `{"a":1,}`,
			own:      `{"a":1}`,
			wantPath: func(t config.Target) string { return t.Dist },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.dist, ptr(tt.own))

			_, err := New(nil).Reconcile(context.Background(), f.target)
			require.ErrorIs(t, err, ErrParseFailure)

			var rerr *Error
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, tt.wantPath(f.target), rerr.Path)
			assert.Equal(t, tt.own, f.readOwn(t), "own must not be touched")
		})
	}
}

func TestReconcileOwnIsDirectory(t *testing.T) {
	f := newFixture(t, `{"a":1}`, nil)
	require.NoError(t, os.Mkdir(f.target.Own, 0755))

	_, err := New(nil).Reconcile(context.Background(), f.target)
	assert.ErrorIs(t, err, ErrReadFailure)
}

func TestReconcilePreservesFileMode(t *testing.T) {
	f := newFixture(t, `{"a":1,"b":2}`, ptr(`{"a":1}`))
	require.NoError(t, os.Chmod(f.target.Own, 0600))

	_, err := New(nil).Reconcile(context.Background(), f.target)
	require.NoError(t, err)

	info, err := os.Stat(f.target.Own)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestCheckModeNeverWrites(t *testing.T) {
	t.Run("missing own", func(t *testing.T) {
		f := newFixture(t, `{"a":1}`, nil)

		summary, err := New(nil, WithCheck(true)).Reconcile(context.Background(), f.target)
		require.NoError(t, err)
		assert.True(t, summary.Drift())
		assert.False(t, summary.Written)
		assert.NoFileExists(t, f.target.Own)
	})

	t.Run("missing keys", func(t *testing.T) {
		f := newFixture(t, `{"a":1,"b":2}`, ptr(`{"a":1}`))

		summary, err := New(nil, WithCheck(true)).Reconcile(context.Background(), f.target)
		require.NoError(t, err)
		assert.True(t, summary.Drift())
		assert.False(t, summary.Written)
		require.Len(t, summary.Additions, 1)
		assert.Equal(t, patchset.OpAdd, summary.Additions[0].Op)
		assert.Equal(t, json.Number("2"), summary.Additions[0].Value)
		assert.Equal(t, `{"a":1}`, f.readOwn(t))
	})

	t.Run("invalid template", func(t *testing.T) {
		f := newFixture(t, `nope`, nil)

		_, err := New(nil, WithCheck(true)).Reconcile(context.Background(), f.target)
		assert.ErrorIs(t, err, ErrInvalidTemplate)
	})
}

func TestErrorFormatting(t *testing.T) {
	err := newError(KindWriteFailure, "/tmp/config.json", errors.New("disk full"))
	assert.Equal(t, "write failure: /tmp/config.json: disk full", err.Error())
	assert.ErrorIs(t, err, ErrWriteFailure)
	assert.NotErrorIs(t, err, ErrReadFailure)
}

func compact(data []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return string(data)
	}
	return buf.String()
}

func TestReconcileStructuralCases(t *testing.T) {
	tests := []struct {
		name         string
		dist         string
		own          string
		wantOwn      string
		wantContains []string
		wantAdded    int
		wantReplaced int
	}{
		{
			name:      "array appends",
			dist:      `{"l":[1,2,3]}`,
			own:       `{"l":[1]}`,
			wantOwn:   `{"l":[1,2,3]}`,
			wantAdded: 2,
		},
		{
			name:      "array append with exact values",
			dist:      `{"l":[{"x":1},12345678901234567890]}`,
			own:       `{"l":[{"x":1}]}`,
			wantOwn:   `{"l":[{"x":1},12345678901234567890]}`,
			wantAdded: 1,
			wantContains: []string{
				"12345678901234567890",
			},
		},
		{
			name:      "keys needing pointer escapes",
			dist:      `{"a/b":1,"c~d":{"e":2},"keep":true}`,
			own:       `{"keep":true}`,
			wantOwn:   `{"a/b":1,"c~d":{"e":2},"keep":true}`,
			wantAdded: 2,
		},
		{
			name:         "type change is left alone",
			dist:         `{"a":{"b":1}}`,
			own:          `{"a":"flat"}`,
			wantOwn:      `{"a":"flat"}`,
			wantReplaced: 1,
		},
		{
			name:      "large integers are copied digit for digit",
			dist:      `{"id":12345678901234567890,"n":9007199254740993,"f":0.10000000000000001}`,
			own:       `{}`,
			wantOwn:   `{"id":12345678901234567890,"n":9007199254740993,"f":0.10000000000000001}`,
			wantAdded: 3,
			wantContains: []string{
				`"id": 12345678901234567890`,
				`"n": 9007199254740993`,
				`"f": 0.10000000000000001`,
			},
		},
		{
			name:      "strings are not HTML-escaped",
			dist:      `{"s":"<&>","dsn":"postgres://db/app?sslmode=disable&timeout=5"}`,
			own:       `{}`,
			wantOwn:   `{"s":"<&>","dsn":"postgres://db/app?sslmode=disable&timeout=5"}`,
			wantAdded: 2,
			wantContains: []string{
				`"s": "<&>"`,
				`"dsn": "postgres://db/app?sslmode=disable&timeout=5"`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.dist, ptr(tt.own))
			r := New(nil)

			summary, err := r.Reconcile(context.Background(), f.target)
			require.NoError(t, err)
			assert.Len(t, summary.Additions, tt.wantAdded)
			assert.Equal(t, tt.wantReplaced, summary.Replaced)
			assert.Equal(t, tt.wantAdded > 0, summary.Written)

			got := f.readOwn(t)
			assert.JSONEq(t, tt.wantOwn, got)
			if !summary.Written {
				assert.Equal(t, tt.own, got, "own must be left byte for byte")
			}
			for _, want := range tt.wantContains {
				assert.Contains(t, got, want)
			}

			again, err := r.Reconcile(context.Background(), f.target)
			require.NoError(t, err)
			assert.Empty(t, again.Additions)
			assert.Equal(t, got, f.readOwn(t))
		})
	}
}
