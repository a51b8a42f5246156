// Package csvimport turns a spreadsheet export of questions into a reviewable preview
// and then into persisted questions.
package csvimport

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/mind-engage/mindengage-study/internal/apperr"
	"github.com/mind-engage/mindengage-study/internal/bank"
	"github.com/mind-engage/mindengage-study/internal/logger"
	"github.com/mind-engage/mindengage-study/internal/model"
	"github.com/mind-engage/mindengage-study/internal/storage"
	"github.com/mind-engage/mindengage-study/internal/store"
	"github.com/mind-engage/mindengage-study/internal/taxonomy"
)

const origin = "importacao_csv"

type Level string

const (
	LevelInfo Level = "info"
	LevelWarn Level = "warn"
)

// LogEntry is one human-readable action of an import run. Line is 0 for run-level entries.
type LogEntry struct {
	Line    int    `json:"linha,omitempty"`
	Level   Level  `json:"nivel"`
	Message string `json:"mensagem"`
}

func (e LogEntry) String() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] linha %d: %s", e.Level, e.Line, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Level, e.Message)
}

type Row struct {
	Line      int            `json:"linha"`
	Subject   string         `json:"disciplina"`
	Topic     string         `json:"topico"`
	Subtopic  string         `json:"subtopico,omitempty"`
	Question  model.Question `json:"questao"`
	Duplicate bool           `json:"duplicada"`
}

// Preview is the parsed, not yet persisted result of an import. Subjects and topics it
// references already exist: resolving names creates them.
type Preview struct {
	Rows    []Row              `json:"linhas"`
	Log     []LogEntry         `json:"log"`
	Skipped int                `json:"ignoradas"`
	Created []taxonomy.Created `json:"criados"`

	resolver *taxonomy.Resolver
	raw      []byte
}

func (p *Preview) logf(line int, level Level, format string, args ...any) {
	p.Log = append(p.Log, LogEntry{Line: line, Level: level, Message: fmt.Sprintf(format, args...)})
}

type Report struct {
	Created    int        `json:"criadas"`
	Duplicates int        `json:"duplicadas"`
	Skipped    int        `json:"ignoradas"`
	IDs        []string   `json:"ids"`
	Log        []LogEntry `json:"log"`
	ArchiveKey string     `json:"arquivo,omitempty"`
}

type Importer struct {
	store   store.Store
	bank    *bank.Service
	log     *logger.Logger
	archive storage.Archive
	now     func() time.Time
}

type Option func(*Importer)

// WithArchive keeps a copy of every committed file.
func WithArchive(a storage.Archive) Option { return func(im *Importer) { im.archive = a } }

func WithClock(now func() time.Time) Option { return func(im *Importer) { im.now = now } }

func NewImporter(s store.Store, log *logger.Logger, opts ...Option) *Importer {
	im := &Importer{store: s, bank: bank.NewService(s, log), log: logger.OrNop(log), now: time.Now}
	for _, o := range opts {
		o(im)
	}
	return im
}

type layout struct {
	cols         map[column]int
	alternatives []int
}

func (l layout) cell(rec []string, c column) string {
	i, ok := l.cols[c]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func readLayout(hdr []string) (layout, error) {
	l := layout{cols: map[column]int{}}
	for i, h := range hdr {
		switch c := classify(h); c {
		case colUnknown:
		case colAlternative:
			l.alternatives = append(l.alternatives, i)
		default:
			if _, dup := l.cols[c]; !dup {
				l.cols[c] = i
			}
		}
	}
	for _, need := range []struct {
		c    column
		name string
	}{{colSubject, "disciplina"}, {colTopic, "tópico da disciplina"}, {colStatement, "questão"}, {colAnswer, "resposta"}} {
		if _, ok := l.cols[need.c]; !ok {
			return l, apperr.Invalid("cabecalho", "missing column: "+need.name)
		}
	}
	return l, nil
}

// Parse reads the CSV, resolves its taxonomy and builds the preview. Row problems are logged
// and skipped; only an unreadable file, a bad header or a store failure abort the run, and an
// aborted run removes the taxonomy records it created.
func (im *Importer) Parse(ctx context.Context, r io.Reader) (*Preview, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperr.Invalid("arquivo", err.Error())
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, apperr.Invalid("arquivo", "empty file")
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	hdr, err := cr.Read()
	if err != nil {
		return nil, apperr.Invalid("cabecalho", err.Error())
	}
	lay, err := readLayout(hdr)
	if err != nil {
		return nil, err
	}

	existing, err := im.existingHashes(ctx)
	if err != nil {
		return nil, err
	}

	p := &Preview{Rows: []Row{}, Log: []LogEntry{}, resolver: taxonomy.NewResolver(im.store, im.log), raw: data}
	seen := map[string]int{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				p.Skipped++
				p.logf(pe.StartLine, LevelWarn, "linha ilegível: %v", pe.Err)
				continue
			}
			return nil, im.abort(ctx, p, apperr.Invalid("arquivo", err.Error()))
		}
		if blank(rec) {
			continue
		}
		line, _ := cr.FieldPos(0)

		row, reason := buildRow(lay, rec, line)
		if reason != "" {
			p.Skipped++
			p.logf(line, LevelWarn, "ignorada: %s", reason)
			continue
		}

		before := len(p.resolver.Created())
		res, err := p.resolver.Resolve(ctx, row.Subject, row.Topic, row.Subtopic)
		if err != nil {
			var ve *apperr.ValidationError
			if errors.As(err, &ve) {
				p.Skipped++
				p.logf(line, LevelWarn, "ignorada: %s", ve.Reason)
				continue
			}
			return nil, im.abort(ctx, p, err)
		}
		for _, c := range p.resolver.Created()[before:] {
			kind := "tópico"
			if c.Collection == store.Subjects {
				kind = "disciplina"
			}
			p.logf(line, LevelInfo, "criada %s %q", kind, c.Name)
		}

		row.Question.SubjectID = res.SubjectID
		row.Question.TopicID = res.EffectiveTopicID
		if err := bank.PrepareQuestion(&row.Question); err != nil {
			p.Skipped++
			p.logf(line, LevelWarn, "ignorada: %v", err)
			continue
		}
		if first, ok := seen[row.Question.ContentHash]; ok {
			row.Duplicate = true
			p.logf(line, LevelWarn, "duplicada da linha %d", first)
		} else if existing[row.Question.ContentHash] {
			row.Duplicate = true
			p.logf(line, LevelWarn, "questão já existe no banco")
		} else {
			seen[row.Question.ContentHash] = line
		}
		p.Rows = append(p.Rows, row)
	}
	p.Created = p.resolver.Created()
	p.logf(0, LevelInfo, "%d questões lidas, %d ignoradas", len(p.Rows), p.Skipped)
	im.log.Info("csvimport: parsed", "rows", len(p.Rows), "skipped", p.Skipped, "taxonomy_created", len(p.Created))
	return p, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// buildRow maps one record to a question draft. A non-empty reason means the row is skipped.
func buildRow(lay layout, rec []string, line int) (Row, string) {
	row := Row{
		Line:     line,
		Subject:  lay.cell(rec, colSubject),
		Topic:    lay.cell(rec, colTopic),
		Subtopic: lay.cell(rec, colSubtopic),
	}
	statement := lay.cell(rec, colStatement)
	answer := lay.cell(rec, colAnswer)
	switch {
	case row.Subject == "":
		return row, "disciplina vazia"
	case row.Topic == "":
		return row, "tópico vazio"
	case statement == "":
		return row, "questão vazia"
	case answer == "":
		return row, "resposta vazia"
	}

	var distractors []string
	for _, i := range lay.alternatives {
		if i < len(rec) {
			if a := strings.TrimSpace(rec[i]); a != "" {
				distractors = append(distractors, a)
			}
		}
	}

	q := model.Question{
		Type:        inferType(lay.cell(rec, colType), statement, answer, distractors),
		Difficulty:  parseDifficulty(lay.cell(rec, colDifficulty)),
		Origin:      origin,
		Statement:   statement,
		Explanation: lay.cell(rec, colExplanation),
		Tags:        splitTags(lay.cell(rec, colTags)),
	}
	if o := lay.cell(rec, colOrigin); o != "" {
		q.Origin = o
	}
	switch q.Type {
	case model.TypeMultipleChoice:
		q.Alternatives = append([]string{answer}, distractors...)
		q.CorrectAnswer = model.StringValue(answer)
	case model.TypeTrueFalse:
		q.CorrectAnswer = model.BoolValue(parseBool(answer))
	default:
		q.CorrectAnswer = model.StringValue(answer)
	}
	row.Question = q
	return row, ""
}

func splitTags(s string) []string {
	out := []string{}
	for _, t := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == '|' }) {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (im *Importer) existingHashes(ctx context.Context) (map[string]bool, error) {
	qs, err := store.ListAs[model.Question](ctx, im.store, store.Questions, nil)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(qs))
	for _, q := range qs {
		out[q.ContentHash] = true
	}
	return out, nil
}

func (im *Importer) abort(ctx context.Context, p *Preview, cause error) error {
	if err := p.resolver.Rollback(ctx); err != nil {
		im.log.Error("csvimport: taxonomy rollback failed", "error", err, "cause", cause)
	}
	return cause
}

// Commit persists the preview's non-duplicate rows in one batch. If the batch fails the
// taxonomy records the run created are deleted again.
func (im *Importer) Commit(ctx context.Context, p *Preview) (Report, error) {
	if p == nil || p.resolver == nil {
		return Report{}, apperr.Invalid("preview", "nothing to commit")
	}
	rep := Report{Skipped: p.Skipped, IDs: []string{}, Log: append([]LogEntry(nil), p.Log...)}

	// the bank may have changed since the preview was built
	var batch []model.Question
	for _, row := range p.Rows {
		if row.Duplicate {
			rep.Duplicates++
			continue
		}
		id, err := im.bank.FindDuplicate(ctx, row.Question.ContentHash)
		if err != nil {
			return rep, err
		}
		if id != "" {
			rep.Duplicates++
			rep.Log = append(rep.Log, LogEntry{Line: row.Line, Level: LevelWarn, Message: "questão já existe no banco: " + id})
			continue
		}
		batch = append(batch, row.Question)
	}

	if len(batch) > 0 {
		created, err := store.BulkCreateAs(ctx, im.store, store.Questions, batch)
		if err != nil {
			cause := pkgerrors.Wrap(err, "bulk create questions")
			if rerr := p.resolver.Rollback(ctx); rerr != nil {
				im.log.Error("csvimport: taxonomy rollback failed", "error", rerr)
				rep.Log = append(rep.Log, LogEntry{Level: LevelWarn, Message: "falha ao desfazer disciplinas/tópicos criados: " + rerr.Error()})
			} else if len(p.Created) > 0 {
				rep.Log = append(rep.Log, LogEntry{Level: LevelWarn, Message: fmt.Sprintf("%d disciplinas/tópicos criados foram removidos", len(p.Created))})
			}
			im.log.Error("csvimport: commit failed", "error", cause, "questions", len(batch))
			return rep, err
		}
		for _, q := range created {
			rep.IDs = append(rep.IDs, q.ID)
		}
	}
	// the taxonomy now backs persisted questions and must survive a later Discard
	p.resolver = nil
	rep.Created = len(batch)
	if rep.Created > 0 {
		im.archiveSource(ctx, p, &rep)
	}
	rep.Log = append(rep.Log, LogEntry{Level: LevelInfo, Message: fmt.Sprintf("%d questões criadas, %d duplicadas, %d ignoradas", rep.Created, rep.Duplicates, rep.Skipped)})
	im.log.Info("csvimport: committed", "created", rep.Created, "duplicates", rep.Duplicates, "skipped", rep.Skipped)
	return rep, nil
}

func (im *Importer) archiveSource(ctx context.Context, p *Preview, rep *Report) {
	if im.archive == nil || len(p.raw) == 0 {
		return
	}
	now := im.now().UTC()
	sum := sha256.Sum256(p.raw)
	key := fmt.Sprintf("imports/%s/%d-%s.csv", model.DateKey(now), now.Unix(), hex.EncodeToString(sum[:6]))
	stored, err := im.archive.Put(ctx, key, bytes.NewReader(p.raw))
	if err != nil {
		im.log.Warn("csvimport: archive failed", "key", key, "error", err)
		rep.Log = append(rep.Log, LogEntry{Level: LevelWarn, Message: "arquivo original não foi guardado: " + err.Error()})
		return
	}
	rep.ArchiveKey = stored
}

// Discard undoes the taxonomy a preview created, for runs that end without a commit.
func (im *Importer) Discard(ctx context.Context, p *Preview) error {
	if p == nil || p.resolver == nil {
		return nil
	}
	return p.resolver.Rollback(ctx)
}
