package lesson

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
)

func validParams() NewLessonParams {
	return NewLessonParams{
		ID:       "es-basics-1",
		Title:    "Greetings",
		Language: "ES",
		Exercises: []Exercise{
			{Type: ExerciseTranslate, Prompt: "hola", CorrectAnswer: "hello", Points: 10},
			{Type: ExerciseMultipleChoice, Prompt: "adiós", Options: []string{"bye", "hi"}, CorrectAnswer: "bye", Points: 10},
		},
		Reward:        Reward{XP: 50, Feathers: 5},
		Prerequisites: []string{"es-intro"},
		IsActive:      true,
	}
}

func TestNewLesson(t *testing.T) {
	l, err := NewLesson(validParams())
	require.NoError(t, err)

	assert.Equal(t, shared.Language("es"), l.Language)
	assert.Equal(t, DifficultyBeginner, l.Difficulty)
	assert.Equal(t, 2, l.TotalExercises())
}

func TestNewLesson_Validation(t *testing.T) {
	p := validParams()
	p.Exercises = nil
	_, err := NewLesson(p)
	assert.True(t, errors.Is(err, shared.ErrLessonHasNoExercises))

	p = validParams()
	p.Exercises[1].Type = "essay"
	_, err = NewLesson(p)
	assert.True(t, errors.Is(err, shared.ErrInvalidExercise))

	p = validParams()
	p.Reward.XP = -1
	_, err = NewLesson(p)
	assert.True(t, shared.IsValidation(err))

	p = validParams()
	p.Prerequisites = []string{p.ID}
	_, err = NewLesson(p)
	assert.True(t, errors.Is(err, shared.ErrInvalidLesson))
}

func TestLesson_Exercise(t *testing.T) {
	l, err := NewLesson(validParams())
	require.NoError(t, err)

	ex, err := l.Exercise(1)
	require.NoError(t, err)
	assert.Equal(t, "bye", ex.CorrectAnswer)

	_, err = l.Exercise(2)
	assert.True(t, errors.Is(err, shared.ErrInvalidExerciseIndex))
}

func TestLesson_MissingPrerequisites(t *testing.T) {
	l, err := NewLesson(validParams())
	require.NoError(t, err)

	assert.Equal(t, []string{"es-intro"}, l.MissingPrerequisites(map[string]bool{}))
	assert.Empty(t, l.MissingPrerequisites(map[string]bool{"es-intro": true}))
}
