package csvimport

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-study/internal/apperr"
	"github.com/mind-engage/mindengage-study/internal/bank"
	"github.com/mind-engage/mindengage-study/internal/model"
	"github.com/mind-engage/mindengage-study/internal/storage"
	"github.com/mind-engage/mindengage-study/internal/store"
	"github.com/mind-engage/mindengage-study/internal/store/local"
)

func newStore(t *testing.T) store.Store {
	t.Helper()
	s, err := local.Open(context.Background(), "file:"+filepath.Join(t.TempDir(), "study.db")+"?mode=rwc")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

const sample = `dificuldade;disciplina;Tópico da Disciplina;Subtópico;Questão;Resposta;alternativa_2;alternativa_3;Explicação
Fácil;Direito Constitucional;Direitos Fundamentais;;A casa é asilo inviolável do indivíduo.;Certo;;;Art. 5º, XI
Difícil;Direito Constitucional;Direitos Fundamentais;Remédios;Qual remédio protege a liberdade de locomoção?;Habeas corpus;Mandado de segurança;Habeas data;
médio;;Organização do Estado;;Sem disciplina;Resposta;;;
;direito constitucional;Organização do Estado;;A capital federal é ___.;Brasília;;;
`

func TestParseBuildsPreview(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	im := NewImporter(s, nil)

	p, err := im.Parse(ctx, strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, p.Rows, 3)
	assert.Equal(t, 1, p.Skipped)

	tf := p.Rows[0].Question
	assert.Equal(t, 2, p.Rows[0].Line)
	assert.Equal(t, model.TypeTrueFalse, tf.Type)
	assert.Equal(t, model.DifficultyEasy, tf.Difficulty)
	b, ok := tf.CorrectAnswer.Bool()
	require.True(t, ok)
	assert.True(t, b)
	assert.Equal(t, "Art. 5º, XI", tf.Explanation)

	mc := p.Rows[1].Question
	assert.Equal(t, model.TypeMultipleChoice, mc.Type)
	assert.Equal(t, model.DifficultyHard, mc.Difficulty)
	assert.Equal(t, []string{"Habeas corpus", "Mandado de segurança", "Habeas data"}, mc.Alternatives)
	ans, _ := mc.CorrectAnswer.String()
	assert.Equal(t, "Habeas corpus", ans)
	assert.NotEqual(t, tf.TopicID, mc.TopicID, "sub-topic is the effective topic")

	fill := p.Rows[2].Question
	assert.Equal(t, model.TypeFillBlank, fill.Type)
	assert.Equal(t, model.DifficultyMedium, fill.Difficulty)
	assert.Equal(t, tf.SubjectID, fill.SubjectID, "subject lookup ignores case")

	var warnings []LogEntry
	for _, e := range p.Log {
		if e.Level == LevelWarn {
			warnings = append(warnings, e)
		}
	}
	require.Len(t, warnings, 1)
	assert.Equal(t, 4, warnings[0].Line)
	assert.Contains(t, warnings[0].Message, "disciplina")

	subjects, err := s.List(ctx, store.Subjects, nil)
	require.NoError(t, err)
	assert.Len(t, subjects, 1)
	topics, err := s.List(ctx, store.Topics, nil)
	require.NoError(t, err)
	assert.Len(t, topics, 3, "two topics and one sub-topic")
	questions, err := s.List(ctx, store.Questions, nil)
	require.NoError(t, err)
	assert.Empty(t, questions, "preview persists no questions")
}

func TestCommitSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	im := NewImporter(s, nil)

	p, err := im.Parse(ctx, strings.NewReader(sample))
	require.NoError(t, err)
	rep, err := im.Commit(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Created)
	assert.Equal(t, 1, rep.Skipped)
	assert.Len(t, rep.IDs, 3)

	p, err = im.Parse(ctx, strings.NewReader(sample))
	require.NoError(t, err)
	for _, r := range p.Rows {
		assert.True(t, r.Duplicate)
	}
	assert.Empty(t, p.Created, "taxonomy is reused on the second run")
	rep, err = im.Commit(ctx, p)
	require.NoError(t, err)
	assert.Zero(t, rep.Created)
	assert.Equal(t, 3, rep.Duplicates)

	questions, err := s.List(ctx, store.Questions, nil)
	require.NoError(t, err)
	assert.Len(t, questions, 3)
}

func TestCommitRechecksBankAfterPreview(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	im := NewImporter(s, nil)

	csv := "disciplina,tópico da disciplina,questão,resposta\nMat,Álgebra,2+2?,4\nMat,Álgebra,3+3?,6\n"
	p, err := im.Parse(ctx, strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, p.Rows, 2)

	// the same question lands in the bank while the preview is open
	_, err = bank.NewService(s, nil).CreateQuestion(ctx, p.Rows[0].Question)
	require.NoError(t, err)

	rep, err := im.Commit(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Created)
	assert.Equal(t, 1, rep.Duplicates)
	var warned bool
	for _, e := range rep.Log {
		if e.Line == 2 && e.Level == LevelWarn {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestDuplicateWithinFile(t *testing.T) {
	csv := "disciplina,tópico da disciplina,questão,resposta\nMat,Álgebra,2+2?,4\nMat,Álgebra,2+2?,4\n"
	p, err := NewImporter(newStore(t), nil).Parse(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, p.Rows, 2)
	assert.False(t, p.Rows[0].Duplicate)
	assert.True(t, p.Rows[1].Duplicate)
	assert.Equal(t, model.TypeFlashcard, p.Rows[0].Question.Type)
}

func TestBooleanLookingTextStaysText(t *testing.T) {
	csv := "disciplina,tópico da disciplina,questão,resposta,alternativa_2\n" +
		"Go,Tipos,Valor de 1 == 1?,true,false\n" +
		"Go,Tipos,Zero value de bool,false,\n"
	ctx := context.Background()
	s := newStore(t)
	im := NewImporter(s, nil)
	p, err := im.Parse(ctx, strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, p.Rows, 2)
	assert.Zero(t, p.Skipped)
	assert.Equal(t, model.TypeMultipleChoice, p.Rows[0].Question.Type)
	assert.Equal(t, model.TypeFlashcard, p.Rows[1].Question.Type)

	rep, err := im.Commit(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Created)

	stored, err := store.GetAs[model.Question](ctx, s, store.Questions, rep.IDs[1])
	require.NoError(t, err)
	ans, ok := stored.CorrectAnswer.String()
	require.True(t, ok)
	assert.Equal(t, "false", ans)
}

func TestDiscardRemovesTaxonomy(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	im := NewImporter(s, nil)

	p, err := im.Parse(ctx, strings.NewReader(sample))
	require.NoError(t, err)
	require.NoError(t, im.Discard(ctx, p))

	subjects, err := s.List(ctx, store.Subjects, nil)
	require.NoError(t, err)
	assert.Empty(t, subjects)
	topics, err := s.List(ctx, store.Topics, nil)
	require.NoError(t, err)
	assert.Empty(t, topics)
}

func TestParseRejectsMissingHeader(t *testing.T) {
	_, err := NewImporter(newStore(t), nil).Parse(context.Background(), strings.NewReader("disciplina,questão\nA,B\n"))
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Reason, "tópico")
}

func TestClassifyAndHelpers(t *testing.T) {
	assert.Equal(t, colTopic, classify(" Tópico da Disciplina "))
	assert.Equal(t, colStatement, classify("QUESTÃO"))
	assert.Equal(t, colExplanation, classify("explicação"))
	assert.Equal(t, colAlternative, classify("alternativa_4"))
	assert.Equal(t, colAlternative, classify("Alternativa 2"))
	assert.Equal(t, colUnknown, classify("alternativa_x"))

	assert.Equal(t, ';', sniffDelimiter([]byte("a;b;\"c,d\"\n1,2")))
	assert.Equal(t, ',', sniffDelimiter([]byte("a,b,c")))

	assert.True(t, parseBool("V"))
	assert.True(t, parseBool("Verdadeiro"))
	assert.False(t, parseBool("errado"))
	assert.Equal(t, model.DifficultyHard, parseDifficulty("DIFÍCIL"))
	assert.Equal(t, model.DifficultyMedium, parseDifficulty("?"))
}

func TestCommitArchivesSource(t *testing.T) {
	ctx := context.Background()
	arch, err := storage.NewFSArchive(t.TempDir())
	require.NoError(t, err)
	im := NewImporter(newStore(t), nil, WithArchive(arch), WithClock(func() time.Time {
		return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	}))

	p, err := im.Parse(ctx, strings.NewReader(sample))
	require.NoError(t, err)
	rep, err := im.Commit(ctx, p)
	require.NoError(t, err)
	require.NotEmpty(t, rep.ArchiveKey)
	assert.True(t, strings.HasPrefix(rep.ArchiveKey, "imports/2026-02-03/"))

	rc, err := arch.Get(ctx, rep.ArchiveKey)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, sample, string(b))

	assert.NoError(t, im.Discard(ctx, p), "discard after commit is a no-op")
	subjects, err := im.store.List(ctx, store.Subjects, nil)
	require.NoError(t, err)
	assert.Len(t, subjects, 1)
}
