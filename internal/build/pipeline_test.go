package build

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/bbcoder/internal/errors"
	"github.com/conneroisu/bbcoder/internal/logging"
	"github.com/conneroisu/bbcoder/internal/project"
	"github.com/conneroisu/bbcoder/internal/renderer"
)

// setupProject writes files into a temporary project directory and returns
// a project declaring targets.
func setupProject(t *testing.T, files map[string]string, targets map[string]string) *project.Project {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	p := project.New(dir)
	for name, src := range targets {
		p.Targets[name] = src
	}
	return p
}

func newPipeline(t *testing.T, p *project.Project, opts Options) *Pipeline {
	t.Helper()
	opts.OutputDir = filepath.Join(t.TempDir(), "target")
	return NewPipeline(p, opts, logging.NewNop())
}

func TestBuildTargetEndToEnd(t *testing.T) {
	p := setupProject(t, map[string]string{
		"index.bbxml": `<bbxml><body>Hello <b>world</b>!</body></bbxml>`,
	}, map[string]string{"main": "index.bbxml"})
	pipeline := newPipeline(t, p, Options{})

	result := pipeline.BuildTarget(context.Background(), "main")
	require.NoError(t, result.Error)

	content, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "Hello [B]world[/B]!", string(content))
	assert.Equal(t, "Hello [B]world[/B]!", string(result.Output))
	assert.Equal(t, "main.txt", filepath.Base(result.OutputPath))
	assert.Equal(t, []string{filepath.Join(p.Directory, "index.bbxml")}, result.Documents)
}

func TestBuildTargetWithIncludesAndSearchPath(t *testing.T) {
	p := setupProject(t, map[string]string{
		"pages/faq.bbxml": `<bbxml>
  <include src="common.bbxml"/>
  <include src="local.bbxml"/>
  <body>
    <include template="heading"><param name="title">FAQ</param></include>
    <list>
      <li><color class="em">one</color></li>
    </list>
  </body>
</bbxml>`,
		"pages/local.bbxml": `<bbxml><classes><class name="em">color=blue</class></classes></bbxml>`,
		"lib/common.bbxml": `<bbxml>
  <templates>
    <template name="heading"><size option="20">{title}</size><br/></template>
  </templates>
</bbxml>`,
	}, map[string]string{"faq": "pages/faq.bbxml"})
	p.Include = []string{"lib"}
	pipeline := newPipeline(t, p, Options{})

	result := pipeline.BuildTarget(context.Background(), "faq")
	require.NoError(t, result.Error)
	assert.Equal(t, "[SIZE=20]FAQ[/SIZE]\n[LIST][*][COLOR=color=blue]one[/COLOR][/LIST]", string(result.Output))
	assert.Len(t, result.Documents, 3)
}

func TestBuildTargetErrors(t *testing.T) {
	testCases := []struct {
		name   string
		files  map[string]string
		target string
		kind   errors.ErrorKind
	}{
		{"unknown target", nil, "nope", errors.KindTargetNotFound},
		{"missing root file", nil, "main", errors.KindFileNotFound},
		{"malformed root", map[string]string{"index.bbxml": `<bbxml>`}, "main", errors.KindXMLParse},
		{"wrong root tag", map[string]string{"index.bbxml": `<html/>`}, "main", errors.KindXMLParse},
		{"missing body", map[string]string{"index.bbxml": `<bbxml/>`}, "main", errors.KindStructural},
		{
			"circular include",
			map[string]string{
				"index.bbxml": `<bbxml><include src="a.bbxml"/><body/></bbxml>`,
				"a.bbxml":     `<bbxml><include src="index.bbxml"/></bbxml>`,
			},
			"main",
			errors.KindCircularInclude,
		},
		{
			"unknown template",
			map[string]string{"index.bbxml": `<bbxml><body><include template="x"/></body></bbxml>`},
			"main",
			errors.KindStructural,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := setupProject(t, tc.files, map[string]string{"main": "index.bbxml"})
			pipeline := newPipeline(t, p, Options{})

			result := pipeline.BuildTarget(context.Background(), tc.target)
			require.Error(t, result.Error)
			assert.Equal(t, tc.kind, errors.KindOf(result.Error))
			assert.Contains(t, result.Error.Error(), "target "+tc.target+":")
			assert.Nil(t, result.Output)
		})
	}
}

func TestMissingBodyCreatesNoOutput(t *testing.T) {
	p := setupProject(t, map[string]string{
		"index.bbxml": `<bbxml><classes/></bbxml>`,
	}, map[string]string{"main": "index.bbxml"})
	pipeline := newPipeline(t, p, Options{})

	result := pipeline.BuildTarget(context.Background(), "main")
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "No body was found in target root")
	assert.NoFileExists(t, result.OutputPath)
}

func TestStrictRendering(t *testing.T) {
	p := setupProject(t, map[string]string{
		"index.bbxml": `<bbxml><body>a{gone}b</body></bbxml>`,
	}, map[string]string{"main": "index.bbxml"})

	lenient := newPipeline(t, p, Options{})
	result := lenient.BuildTarget(context.Background(), "main")
	require.NoError(t, result.Error)
	assert.Equal(t, "ab", string(result.Output))

	strict := newPipeline(t, p, Options{Render: renderer.Options{Strict: true}})
	result = strict.BuildTarget(context.Background(), "main")
	require.Error(t, result.Error)
	assert.True(t, errors.IsKind(result.Error, errors.KindStructural))
}

func TestBuildAttemptsEveryTarget(t *testing.T) {
	files := map[string]string{
		"a.bbxml": `<bbxml><body>A</body></bbxml>`,
		"b.bbxml": `<bbxml/>`,
		"c.bbxml": `<bbxml><body>C</body></bbxml>`,
	}
	targets := map[string]string{"a": "a.bbxml", "b": "b.bbxml", "c": "c.bbxml", "d": "missing.bbxml"}

	for _, jobs := range []int{1, 3, 8} {
		p := setupProject(t, files, targets)
		pipeline := newPipeline(t, p, Options{Jobs: jobs})

		results, err := pipeline.Build(context.Background(), p.TargetNames())
		require.Error(t, err)
		require.Len(t, results, 4)

		got := make(map[string]string)
		for _, r := range results {
			if r.Error != nil {
				got[r.Target] = string(errors.KindOf(r.Error))
				continue
			}
			got[r.Target] = string(r.Output)
		}
		want := map[string]string{
			"a": "A",
			"b": string(errors.KindStructural),
			"c": "C",
			"d": string(errors.KindFileNotFound),
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("jobs=%d results mismatch (-want +got):\n%s", jobs, diff)
		}
		assert.Contains(t, err.Error(), "target b:")
		assert.Contains(t, err.Error(), "target d:")

		snapshot := pipeline.Metrics().Snapshot()
		assert.Equal(t, int64(4), snapshot.TotalBuilds)
		assert.Equal(t, int64(2), snapshot.FailedBuilds)
	}
}

func TestBuildNotifiesCallbacks(t *testing.T) {
	p := setupProject(t, map[string]string{
		"index.bbxml": `<bbxml><body>x</body></bbxml>`,
	}, map[string]string{"main": "index.bbxml", "other": "index.bbxml"})
	pipeline := newPipeline(t, p, Options{Jobs: 2})

	var (
		mu   sync.Mutex
		seen []string
	)
	pipeline.AddCallback(func(r Result) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, r.Target)
	})

	_, err := pipeline.Build(context.Background(), []string{"main", "other"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main", "other"}, seen)
}

func TestBuildHonorsCancellation(t *testing.T) {
	p := setupProject(t, map[string]string{
		"index.bbxml": `<bbxml><body>x</body></bbxml>`,
	}, map[string]string{"main": "index.bbxml"})
	pipeline := newPipeline(t, p, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := pipeline.Build(ctx, []string{"main"})
	require.Error(t, err)
	assert.ErrorIs(t, results[0].Error, context.Canceled)
	assert.NoFileExists(t, results[0].OutputPath)
}

func TestBuildWithNoTargets(t *testing.T) {
	pipeline := newPipeline(t, project.New(t.TempDir()), Options{Jobs: 4})
	results, err := pipeline.Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
