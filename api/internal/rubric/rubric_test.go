package rubric

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peer-review/api/internal/course"
)

func write(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func module(t *testing.T, n int) course.Module {
	t.Helper()
	m, err := course.ByNumber(n)
	require.NoError(t, err)
	return m
}

func TestLoadRubric(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "rubric_5.txt", "  Results rubric\n")
	write(t, dir, "rubric_2_design.txt", "Design rubric")
	write(t, dir, "rubric_4.txt", "   \n")
	l := New(dir, nil)

	got, err := l.LoadRubric(module(t, 5))
	require.NoError(t, err)
	assert.Equal(t, "Results rubric", got)

	got, err = l.LoadRubric(module(t, 3))
	require.NoError(t, err)
	assert.Equal(t, "Design rubric", got)

	_, err = l.LoadRubric(module(t, 4))
	assert.ErrorIs(t, err, ErrRubricNotFound)

	_, err = l.LoadRubric(module(t, 2))
	assert.ErrorIs(t, err, ErrRubricNotFound)
}

func TestLoadImageRubricFallbackChain(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	l := New(dir, nil)
	m := module(t, 5)

	assert.Equal(t, DefaultImageRubric, l.LoadImageRubric(ctx, m))

	write(t, dir, "image_rubric_default.txt", "default figures")
	assert.Equal(t, "default figures", l.LoadImageRubric(ctx, m))

	write(t, dir, "image_rubric_5.txt", "module five figures")
	assert.Equal(t, "module five figures", l.LoadImageRubric(ctx, m))
	assert.Equal(t, "default figures", l.LoadImageRubric(ctx, module(t, 2)))
}

func TestLoadImageRubricMissingDir(t *testing.T) {
	ctx := context.Background()
	l := New(filepath.Join(t.TempDir(), "nope"), nil)
	assert.Equal(t, DefaultImageRubric, l.LoadImageRubric(ctx, module(t, 6)))
}
