package defscan

import (
	"testing"

	"github.com/spf13/afero"
)

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// buildMod lays out a minimal mod with the given defs files, keyed by path
// relative to the mod root.
func buildMod(t *testing.T, fs afero.Fs, modRoot string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		writeFile(t, fs, modRoot+"/"+rel, content)
	}
}

func aboutXML(versions ...string) string {
	out := "<ModMetaData>\n  <name>Test Mod</name>\n  <supportedVersions>\n"
	for _, v := range versions {
		out += "    <li>" + v + "</li>\n"
	}
	return out + "  </supportedVersions>\n</ModMetaData>"
}

const defsThreeThings = `<Defs>
  <ThingDef><defName>Widget</defName></ThingDef>
  <ThingDef><defName>Gadget</defName></ThingDef>
  <RecipeDef><defName>MakeWidget</defName></RecipeDef>
</Defs>`
