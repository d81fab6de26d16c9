package defscan

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefsFiles(t *testing.T) {
	t.Run("collects xml under root-level Defs recursively", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		buildMod(t, fs, "/mod", map[string]string{
			"Defs/things.xml":        "<Defs/>",
			"Defs/nested/sounds.XML": "<Defs/>",
			"Defs/readme.txt":        "not xml",
		})

		files := DefsFiles(fs, "/mod")
		assert.ElementsMatch(t, []string{
			"/mod/Defs/things.xml",
			"/mod/Defs/nested/sounds.XML",
		}, files)
	})

	t.Run("includes exactly one resolved version tree", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		buildMod(t, fs, "/mod", map[string]string{
			"Defs/base.xml":       "<Defs/>",
			"1.4/Defs/new.xml":    "<Defs/>",
			"1.3/Defs/old.xml":    "<Defs/>",
			"About/About.xml":     aboutXML("1.4"),
			"Textures/tex.xml":    "<Defs/>",
			"1.4/Sounds/s.xml":    "<Defs/>",
			"1.4/Defs/deep/a.xml": "<Defs/>",
		})

		files := DefsFiles(fs, "/mod")
		assert.ElementsMatch(t, []string{
			"/mod/Defs/base.xml",
			"/mod/1.4/Defs/new.xml",
			"/mod/1.4/Defs/deep/a.xml",
		}, files)
	})

	t.Run("matches Defs directory name case-insensitively", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		buildMod(t, fs, "/mod", map[string]string{
			"defs/things.xml":    "<Defs/>",
			"1.5/DEFS/extra.xml": "<Defs/>",
		})

		files := DefsFiles(fs, "/mod")
		assert.ElementsMatch(t, []string{
			"/mod/defs/things.xml",
			"/mod/1.5/DEFS/extra.xml",
		}, files)
	})

	t.Run("mod without any Defs yields empty", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, fs.MkdirAll("/mod/Textures", 0o755))

		assert.Empty(t, DefsFiles(fs, "/mod"))
	})

	t.Run("missing mod root yields empty", func(t *testing.T) {
		fs := afero.NewMemMapFs()

		assert.Empty(t, DefsFiles(fs, "/nope"))
	})

	t.Run("is restartable", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		buildMod(t, fs, "/mod", map[string]string{
			"Defs/things.xml": "<Defs/>",
		})

		first := DefsFiles(fs, "/mod")
		second := DefsFiles(fs, "/mod")
		assert.Equal(t, first, second)
	})
}
