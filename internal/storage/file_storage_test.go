package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/VNScriptCreator/internal/models"
)

const yamlProject = `story_concept: A detective at magic school
characters:
  - name: Ava
    role: Main Character
    age: 17
    personality: curious
story_arcs:
  - name: Festival
    start_chapter: 1
    end_chapter: 4
    characters: [Ava]
milestones:
  - name: Reveal
    chapter: 3
    type: Plot Point
    impact: High
    related_arc: Festival
  - name: Aftermath
    chapter: 8
    type: Conflict Resolution
    impact: Low
dialogue_scenes:
  - name: Rooftop
    chapter: 2
    characters: [Ava]
    dialogue: "Ava: Who's there?"
    branches: [Answer, Hide]
`

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFromPath("story.yaml"))
	assert.Equal(t, FormatYAML, FormatFromPath("dir/Story.YML"))
	assert.Equal(t, FormatJSON, FormatFromPath("story.json"))
	assert.Equal(t, FormatJSON, FormatFromPath("story"))
}

func TestFormatFromContentType(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFromContentType("application/x-yaml"))
	assert.Equal(t, FormatYAML, FormatFromContentType("text/yaml; charset=utf-8"))
	assert.Equal(t, FormatJSON, FormatFromContentType("application/json"))
	assert.Equal(t, FormatJSON, FormatFromContentType(""))
}

func TestLoadProjectFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlProject), 0644))

	bundle, err := LoadProjectFile(path)
	require.NoError(t, err)

	assert.Equal(t, "A detective at magic school", bundle.StoryConcept)
	require.Len(t, bundle.Characters, 1)
	assert.Equal(t, models.RoleMainCharacter, bundle.Characters[0].Role)
	assert.Equal(t, 17, bundle.Characters[0].Age)
	require.Len(t, bundle.StoryArcs, 1)
	assert.Equal(t, []string{"Ava"}, bundle.StoryArcs[0].Characters)

	require.Len(t, bundle.Milestones, 2)
	require.NotNil(t, bundle.Milestones[0].RelatedArc)
	assert.Equal(t, "Festival", *bundle.Milestones[0].RelatedArc)
	assert.Nil(t, bundle.Milestones[1].RelatedArc)

	require.Len(t, bundle.DialogueScenes, 1)
	assert.Equal(t, []string{"Answer", "Hide"}, bundle.DialogueScenes[0].Branches)
}

func TestLoadProjectFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.json")
	content := `{"story_concept":"x","characters":[],"story_arcs":[],"milestones":[{"id":"m1","name":"Reveal","chapter":2,"type":"Plot Point","impact":"High","related_arc":null}],"dialogue_scenes":[],"export_date":"2026-01-02T03:04:05.000000"}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	bundle, err := LoadProjectFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x", bundle.StoryConcept)
	require.Len(t, bundle.Milestones, 1)
	assert.Equal(t, "m1", bundle.Milestones[0].ID)
	assert.Nil(t, bundle.Milestones[0].RelatedArc)
	assert.Equal(t, "2026-01-02T03:04:05.000000", bundle.ExportDate)
}

func TestLoadProjectFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadProjectFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0644))
	_, err = LoadProjectFile(empty)
	assert.Error(t, err)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{"), 0644))
	_, err = LoadProjectFile(broken)
	assert.Error(t, err)
}

func TestSaveTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "visual_novel_script.md")

	require.NoError(t, SaveTextFile(path, []byte("first")))
	require.NoError(t, SaveTextFile(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
