package grading

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-study/internal/model"
)

func TestGradeByType(t *testing.T) {
	g := NewDefaultGrader()
	ctx := context.Background()

	cases := []struct {
		name     string
		q        Q
		response model.Value
		want     bool
	}{
		{"mc correct", Q{model.TypeMultipleChoice, model.StringValue("Brasília")}, model.StringValue("Brasília"), true},
		{"mc wrong", Q{model.TypeMultipleChoice, model.StringValue("Brasília")}, model.StringValue("Rio"), false},
		{"mc literal true", Q{model.TypeMultipleChoice, model.StringValue("true")}, model.StringValue("true"), true},
		{"fill literal false", Q{model.TypeFillBlank, model.StringValue("false")}, model.StringValue("true"), false},
		{"tf bool", Q{model.TypeTrueFalse, model.BoolValue(true)}, model.BoolValue(true), true},
		{"tf serialized", Q{model.TypeTrueFalse, model.Value(`"false"`)}, model.BoolValue(false), true},
		{"tf wrong", Q{model.TypeTrueFalse, model.BoolValue(true)}, model.Value(`"false"`), false},
		{"fill exact", Q{model.TypeFillBlank, model.StringValue("mitocôndria")}, model.StringValue("mitocôndria"), true},
		{"fill case differs", Q{model.TypeFillBlank, model.StringValue("mitocôndria")}, model.StringValue("Mitocôndria"), false},
		{"flashcard verdict", Q{model.TypeFlashcard, model.StringValue("art. 5º")}, model.BoolValue(true), true},
		{"flashcard typed true text", Q{model.TypeFlashcard, model.StringValue("false")}, model.StringValue("false"), true},
		{"flashcard typed", Q{model.TypeFlashcard, model.StringValue("art. 5º")}, model.StringValue("art. 5º"), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res, err := g.Grade(ctx, c.q, c.response)
			require.NoError(t, err)
			assert.Equal(t, c.want, res.Correct)
		})
	}
}

func TestGradeRejectsWrongShape(t *testing.T) {
	g := NewDefaultGrader()
	_, err := g.Grade(context.Background(), Q{model.TypeTrueFalse, model.BoolValue(true)}, model.StringValue("talvez"))
	assert.Error(t, err)

	_, err = g.Grade(context.Background(), Q{model.TypeMultipleChoice, model.StringValue("a")}, nil)
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestTrimFillBlankOption(t *testing.T) {
	g := NewDefaultGrader(WithTrimFillBlank(true))
	res, err := g.Grade(context.Background(), Q{model.TypeFillBlank, model.StringValue("DNA")}, model.StringValue(" DNA "))
	require.NoError(t, err)
	assert.True(t, res.Correct)
}
