package services

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/VNScriptCreator/internal/errors"
	"github.com/Corphon/VNScriptCreator/internal/models"
)

func newTestProject(t *testing.T) (*ProjectService, *Project) {
	t.Helper()
	sessions := NewSessionService(time.Hour, time.Minute, 0, nil)
	return NewProjectService(nil), mustCreate(t, sessions)
}

func TestProjectService_AddCharacterValidation(t *testing.T) {
	svc, p := newTestProject(t)

	tests := []struct {
		name  string
		in    CharacterInput
		field string
	}{
		{"blank name", CharacterInput{Name: "  ", Role: models.RoleFriend, Age: 18}, "name"},
		{"unknown role", CharacterInput{Name: "Ava", Role: "Sidekick", Age: 18}, "role"},
		{"too young", CharacterInput{Name: "Ava", Role: models.RoleFriend, Age: 9}, "age"},
		{"too old", CharacterInput{Name: "Ava", Role: models.RoleFriend, Age: 101}, "age"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddCharacter(p, tt.in)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidationError(err))

			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
	assert.Empty(t, svc.ListCharacters(p))
}

func TestProjectService_CharacterCRUD(t *testing.T) {
	svc, p := newTestProject(t)

	ava, err := svc.AddCharacter(p, CharacterInput{Name: " Ava ", Role: models.RoleMainCharacter, Age: 17, Goals: "escape"})
	require.NoError(t, err)
	assert.Equal(t, "Ava", ava.Name)

	ren, err := svc.AddCharacter(p, CharacterInput{Name: "Ren", Role: models.RoleLoveInterest, Age: 18})
	require.NoError(t, err)

	list := svc.ListCharacters(p)
	require.Len(t, list, 2)
	assert.Equal(t, ava.ID, list[0].ID)

	got, err := svc.GetCharacter(p, ren.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ren", got.Name)

	require.NoError(t, svc.DeleteCharacter(p, ava.ID))
	assert.Equal(t, []models.Character{ren}, svc.ListCharacters(p))
	assert.True(t, apperrors.IsNotFoundError(svc.DeleteCharacter(p, ava.ID)))
}

func TestProjectService_DeletingCharacterOrphansReferences(t *testing.T) {
	svc, p := newTestProject(t)

	ava, err := svc.AddCharacter(p, CharacterInput{Name: "Ava", Role: models.RoleMainCharacter, Age: 17})
	require.NoError(t, err)
	_, err = svc.AddStoryArc(p, StoryArcInput{Name: "Escape", StartChapter: 1, EndChapter: 3, Characters: []string{"Ava"}})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCharacter(p, ava.ID))

	arcs := svc.ListStoryArcs(p)
	require.Len(t, arcs, 1)
	assert.Equal(t, []string{"Ava"}, arcs[0].Characters)
}

func TestProjectService_StoryArcValidation(t *testing.T) {
	svc, p := newTestProject(t)

	_, err := svc.AddStoryArc(p, StoryArcInput{Name: "Arc", StartChapter: 0, EndChapter: 3})
	assert.True(t, apperrors.IsValidationError(err))

	_, err = svc.AddStoryArc(p, StoryArcInput{Name: "Arc", StartChapter: 1, EndChapter: 20_000_000})
	require.Error(t, err)
	assert.Equal(t, "end_chapter", err.(*apperrors.AppError).Field)

	_, err = svc.AddStoryArc(p, StoryArcInput{Name: "Arc", StartChapter: 1, EndChapter: math.MaxInt})
	assert.True(t, apperrors.IsValidationError(err))

	_, err = svc.AddStoryArc(p, StoryArcInput{Name: "Edge", StartChapter: MaxChapter, EndChapter: MaxChapter})
	require.NoError(t, err)

	_, err = svc.AddStoryArc(p, StoryArcInput{Name: "Arc", StartChapter: 1, EndChapter: 3, Characters: []string{"Ghost"}})
	assert.True(t, apperrors.IsValidationError(err))

	// 起止顺序不校验
	arc, err := svc.AddStoryArc(p, StoryArcInput{Name: "Backwards", StartChapter: 5, EndChapter: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{}, arc.Characters)
}

func TestProjectService_MilestonesSortedViewAndDeleteByID(t *testing.T) {
	svc, p := newTestProject(t)

	add := func(name string, chapter int) models.Milestone {
		m, err := svc.AddMilestone(p, MilestoneInput{Name: name, Chapter: chapter, Type: "Plot Point", Impact: models.ImpactHigh})
		require.NoError(t, err)
		return m
	}

	late := add("Finale", 9)
	first := add("Twin A", 3)
	second := add("Twin B", 3)

	view := svc.ListMilestones(p)
	require.Len(t, view, 3)
	assert.Equal(t, []string{"Twin A", "Twin B", "Finale"}, []string{view[0].Name, view[1].Name, view[2].Name})

	// 两个里程碑同章节时，按 ID 删除必须只删掉指定的那个
	require.NoError(t, svc.DeleteMilestone(p, second.ID))

	view = svc.ListMilestones(p)
	require.Len(t, view, 2)
	assert.Equal(t, first.ID, view[0].ID)
	assert.Equal(t, late.ID, view[1].ID)
}

func TestProjectService_MilestoneValidation(t *testing.T) {
	svc, p := newTestProject(t)

	base := MilestoneInput{Name: "Reveal", Chapter: 5, Type: "Plot Point", Impact: models.ImpactHigh}

	bad := base
	bad.Impact = "Huge"
	_, err := svc.AddMilestone(p, bad)
	assert.True(t, apperrors.IsValidationError(err))

	bad = base
	bad.Type = "Twist"
	_, err = svc.AddMilestone(p, bad)
	assert.True(t, apperrors.IsValidationError(err))

	bad = base
	bad.RelatedArc = "Missing Arc"
	_, err = svc.AddMilestone(p, bad)
	assert.True(t, apperrors.IsValidationError(err))

	ok := base
	ok.RelatedArc = models.NoRelatedArc
	m, err := svc.AddMilestone(p, ok)
	require.NoError(t, err)
	assert.Nil(t, m.RelatedArc)
}

func TestProjectService_DialogueScene(t *testing.T) {
	svc, p := newTestProject(t)

	_, err := svc.AddDialogueScene(p, DialogueSceneInput{Name: "Rooftop", Chapter: 1})
	assert.True(t, apperrors.IsValidationError(err))

	_, err = svc.AddCharacter(p, CharacterInput{Name: "Ava", Role: models.RoleMainCharacter, Age: 17})
	require.NoError(t, err)

	scene, err := svc.AddDialogueScene(p, DialogueSceneInput{
		Name:       "Rooftop",
		Chapter:    2,
		Characters: []string{"Ava"},
		Dialogue:   "Hello?",
		Branches:   []string{" Wave ", "", "Run", "Hide", "Shout", "Sing"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Wave", "Run", "Hide", "Shout"}, scene.Branches)

	require.NoError(t, svc.DeleteDialogueScene(p, scene.ID))
	assert.Empty(t, svc.ListDialogueScenes(p))
}

func TestProjectService_SummaryAndNotifications(t *testing.T) {
	svc, p := newTestProject(t)

	var mu sync.Mutex
	events := 0
	svc.Subscribe(func(*Project) {
		mu.Lock()
		events++
		mu.Unlock()
	})

	assert.False(t, svc.Summary(p).HasContent)

	svc.SetConcept(p, "idea")
	_, err := svc.AddCharacter(p, CharacterInput{Name: "Ava", Role: models.RoleMainCharacter, Age: 17})
	require.NoError(t, err)

	summary := svc.Summary(p)
	assert.True(t, summary.HasContent)
	assert.Equal(t, 1, summary.Characters)
	assert.Equal(t, 2, events)
}

func TestProjectService_ImportFillsMissingIDs(t *testing.T) {
	svc, p := newTestProject(t)

	arcName := "Festival"
	summary, err := svc.Import(p, models.ExportBundle{
		StoryConcept: "imported",
		Characters:   []models.Character{{Name: "Ava", Role: models.RoleMainCharacter, Age: 17}},
		StoryArcs:    []models.StoryArc{{Name: arcName, StartChapter: 1, EndChapter: 2}},
		Milestones:   []models.Milestone{{ID: "keep-me", Name: "Reveal", Chapter: 2, RelatedArc: &arcName}},
		DialogueScenes: []models.DialogueScene{
			{Name: "Rooftop", Chapter: 1},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, models.ProjectSummary{Characters: 1, StoryArcs: 1, Milestones: 1, DialogueScenes: 1, HasContent: true}, summary)
	assert.Equal(t, "imported", svc.Concept(p))

	chars := svc.ListCharacters(p)
	assert.NotEmpty(t, chars[0].ID)
	assert.NotEmpty(t, chars[0].CreatedAt)
	assert.Equal(t, "keep-me", svc.ListMilestones(p)[0].ID)
	assert.Equal(t, []string{}, svc.ListDialogueScenes(p)[0].Branches)

	svc.Reset(p)
	assert.False(t, svc.Summary(p).HasContent)
	assert.Equal(t, "", svc.Concept(p))
}

func TestProjectService_ImportRegeneratesDuplicateIDs(t *testing.T) {
	svc, p := newTestProject(t)

	_, err := svc.Import(p, models.ExportBundle{
		Milestones: []models.Milestone{
			{ID: "copied", Name: "First", Chapter: 2},
			{ID: "copied", Name: "Second", Chapter: 2},
			{ID: "other", Name: "Third", Chapter: 5},
		},
		DialogueScenes: []models.DialogueScene{
			{ID: "scene", Name: "A", Chapter: 1},
			{ID: "scene", Name: "B", Chapter: 1},
		},
	})
	require.NoError(t, err)

	view := svc.ListMilestones(p)
	require.Len(t, view, 3)
	assert.Equal(t, "copied", view[0].ID)
	assert.NotEqual(t, "copied", view[1].ID)
	assert.NotEmpty(t, view[1].ID)
	assert.Equal(t, "other", view[2].ID)

	// 删除重复项中的第二条，只影响它自己
	require.NoError(t, svc.DeleteMilestone(p, view[1].ID))
	names := []string{}
	for _, m := range svc.ListMilestones(p) {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"First", "Third"}, names)

	scenes := svc.ListDialogueScenes(p)
	require.Len(t, scenes, 2)
	assert.NotEqual(t, scenes[0].ID, scenes[1].ID)
}

func TestProjectService_ImportRejectsOutOfRangeChapters(t *testing.T) {
	tests := []struct {
		name   string
		bundle models.ExportBundle
	}{
		{"arc end", models.ExportBundle{StoryArcs: []models.StoryArc{{Name: "Endless", StartChapter: 1, EndChapter: math.MaxInt}}}},
		{"arc start", models.ExportBundle{StoryArcs: []models.StoryArc{{Name: "Zero", StartChapter: 0, EndChapter: 3}}}},
		{"milestone", models.ExportBundle{Milestones: []models.Milestone{{Name: "Far", Chapter: MaxChapter + 1}}}},
		{"scene", models.ExportBundle{DialogueScenes: []models.DialogueScene{{Name: "Before", Chapter: -10}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, p := newTestProject(t)
			_, err := svc.AddCharacter(p, CharacterInput{Name: "Ava", Role: models.RoleMainCharacter, Age: 17})
			require.NoError(t, err)

			_, err = svc.Import(p, tt.bundle)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidationError(err))

			// 被拒绝的导入不改动原有数据
			assert.Len(t, svc.ListCharacters(p), 1)
		})
	}
}
