package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyBands(t *testing.T) {
	assert.True(t, PolicyEasy.Allows(DifficultyEasy))
	assert.True(t, PolicyEasy.Allows(DifficultyMedium))
	assert.False(t, PolicyEasy.Allows(DifficultyHard))

	assert.False(t, PolicyHard.Allows(DifficultyEasy))
	assert.True(t, PolicyHard.Allows(DifficultyMedium))
	assert.True(t, PolicyHard.Allows(DifficultyHard))

	for _, d := range []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard} {
		assert.True(t, PolicyRandom.Allows(d))
	}
}

func TestValueShapeFollowsQuestionType(t *testing.T) {
	cases := []struct {
		raw  string
		typ  QuestionType
		want any
		ok   bool
	}{
		{`true`, TypeTrueFalse, true, true},
		{`"true"`, TypeTrueFalse, true, true},
		{`"False"`, TypeTrueFalse, false, true},
		{`"talvez"`, TypeTrueFalse, false, false},
		{`"true"`, TypeFillBlank, "true", true},
		{`"false"`, TypeMultipleChoice, "false", true},
		{`"Brasília"`, TypeFlashcard, "Brasília", true},
		{`"\"B\""`, TypeFillBlank, `"B"`, true},
		{`true`, TypeFillBlank, nil, false},
	}
	for _, c := range cases {
		got, ok := Value(c.raw).For(c.typ)
		assert.Equal(t, c.ok, ok, c.raw)
		if c.ok {
			assert.Equal(t, c.want, got, c.raw)
		}
	}
	assert.Nil(t, Value(`null`).Decode())
	assert.Equal(t, "true", Value(`"true"`).Decode())
}

func TestQuestionRoundTripKeepsAnswerText(t *testing.T) {
	q := Question{
		SubjectID:     "d1",
		TopicID:       "t1",
		Type:          TypeMultipleChoice,
		Difficulty:    DifficultyEasy,
		Statement:     "Capital do Brasil?",
		Alternatives:  []string{"Rio de Janeiro", "Brasília", "Salvador"},
		CorrectAnswer: StringValue("Brasília"),
	}
	require.NoError(t, q.Validate())

	buf, err := json.Marshal(q)
	require.NoError(t, err)
	var back Question
	require.NoError(t, json.Unmarshal(buf, &back))

	// reorder the alternatives: the answer is stored by text, not position
	back.Alternatives[0], back.Alternatives[1] = back.Alternatives[1], back.Alternatives[0]
	ans, ok := back.CorrectAnswer.String()
	require.True(t, ok)
	assert.Equal(t, "Brasília", ans)
	assert.ElementsMatch(t, q.Alternatives, back.Alternatives)
	require.NoError(t, back.Validate())

	tf := Question{SubjectID: "d1", TopicID: "t1", Type: TypeTrueFalse, Difficulty: DifficultyHard,
		Statement: "O céu é azul.", CorrectAnswer: BoolValue(true)}
	buf, err = json.Marshal(tf)
	require.NoError(t, err)
	var tfBack Question
	require.NoError(t, json.Unmarshal(buf, &tfBack))
	b, ok := tfBack.CorrectAnswer.Bool()
	require.True(t, ok)
	assert.True(t, b)

	// answers whose text looks like a boolean stay text for string-typed questions
	for _, lit := range []Question{
		{SubjectID: "d1", TopicID: "t1", Type: TypeMultipleChoice, Difficulty: DifficultyMedium,
			Statement: "Resposta em inglês?", Alternatives: []string{"true", "false"}, CorrectAnswer: StringValue("true")},
		{SubjectID: "d1", TopicID: "t1", Type: TypeFillBlank, Difficulty: DifficultyMedium,
			Statement: "Em Go, 1 == 1 vale ___", CorrectAnswer: StringValue("true")},
	} {
		require.NoError(t, lit.Validate())
		buf, err = json.Marshal(lit)
		require.NoError(t, err)
		var litBack Question
		require.NoError(t, json.Unmarshal(buf, &litBack))
		require.NoError(t, litBack.Validate())
		s, ok := litBack.CorrectAnswer.String()
		require.True(t, ok)
		assert.Equal(t, "true", s)
	}
}

func TestValidateRejectsAnswerOutsideAlternatives(t *testing.T) {
	q := Question{SubjectID: "d1", TopicID: "t1", Type: TypeMultipleChoice, Difficulty: DifficultyMedium,
		Statement: "2+2?", Alternatives: []string{"3", "5"}, CorrectAnswer: StringValue("4")}
	assert.Error(t, q.Validate())

	tf := Question{SubjectID: "d1", TopicID: "t1", Type: TypeTrueFalse, Difficulty: DifficultyMedium,
		Statement: "x", CorrectAnswer: StringValue("talvez")}
	assert.Error(t, tf.Validate())
}

func TestContentHashIgnoresWhitespaceAndCase(t *testing.T) {
	a := ContentHash("Qual  a capital?", nil, StringValue("Brasília"))
	b := ContentHash("qual a capital? ", nil, StringValue(" Brasília"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, ContentHash("Qual a capital?", nil, StringValue("Rio")))
}

func TestExamQuestionNullableFieldsRoundTrip(t *testing.T) {
	slot := ExamQuestion{ID: "s1", QuestionID: "q1", Order: 1}
	buf, err := json.Marshal(slot)
	require.NoError(t, err)
	assert.NotContains(t, string(buf), "respostaUsuario")
	assert.NotContains(t, string(buf), "correta")

	var back ExamQuestion
	require.NoError(t, json.Unmarshal(buf, &back))
	assert.False(t, back.Answered())
	assert.True(t, back.Response.IsZero())
}
