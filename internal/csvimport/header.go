package csvimport

import (
	"bytes"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/mind-engage/mindengage-study/internal/model"
)

type column int

const (
	colUnknown column = iota
	colDifficulty
	colSubject
	colTopic
	colSubtopic
	colStatement
	colAnswer
	colExplanation
	colType
	colOrigin
	colTags
	colAlternative
)

var headerNames = map[string]column{
	"dificuldade":          colDifficulty,
	"disciplina":           colSubject,
	"topico da disciplina": colTopic,
	"topico":               colTopic,
	"subtopico":            colSubtopic,
	"questao":              colStatement,
	"enunciado":            colStatement,
	"resposta":             colAnswer,
	"explicacao":           colExplanation,
	"tipo":                 colType,
	"origem":               colOrigin,
	"tags":                 colTags,
}

// fold lowercases s and strips diacritics, so "Tópico da Disciplina" matches "topico da disciplina".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.Join(strings.Fields(out), " "))
}

// classify maps a header cell to its column. Alternative columns are alternativa_2..N
// (alternativa 2 and alternativa2 are accepted too).
func classify(h string) column {
	k := fold(h)
	if c, ok := headerNames[k]; ok {
		return c
	}
	if rest, ok := strings.CutPrefix(k, "alternativa"); ok {
		rest = strings.TrimLeft(rest, "_ -")
		if rest != "" && strings.Trim(rest, "0123456789") == "" {
			return colAlternative
		}
	}
	return colUnknown
}

// sniffDelimiter picks ';' when the header line has more semicolons than commas outside quotes.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	commas, semis := 0, 0
	quoted := false
	for _, b := range line {
		switch b {
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				commas++
			}
		case ';':
			if !quoted {
				semis++
			}
		}
	}
	if semis > commas {
		return ';'
	}
	return ','
}

var trueWords = map[string]bool{"verdadeiro": true, "certo": true, "v": true}

var boolWords = map[string]bool{"verdadeiro": true, "certo": true, "v": true, "falso": true, "errado": true, "f": true}

func parseBool(s string) bool { return trueWords[fold(s)] }

func parseDifficulty(s string) model.Difficulty {
	switch fold(s) {
	case "facil", "easy":
		return model.DifficultyEasy
	case "dificil", "hard":
		return model.DifficultyHard
	default:
		return model.DifficultyMedium
	}
}

// inferType picks the question type from the shape of a row unless the tipo column names one.
func inferType(explicit, statement, answer string, alternatives []string) model.QuestionType {
	switch fold(explicit) {
	case "multipla escolha", "multipla_escolha", "me":
		return model.TypeMultipleChoice
	case "verdadeiro ou falso", "verdadeiro_falso", "vf", "certo ou errado", "ce":
		return model.TypeTrueFalse
	case "lacuna":
		return model.TypeFillBlank
	case "flashcard":
		return model.TypeFlashcard
	}
	switch {
	case len(alternatives) > 0:
		return model.TypeMultipleChoice
	case boolWords[fold(answer)]:
		return model.TypeTrueFalse
	case strings.Contains(statement, "___"):
		return model.TypeFillBlank
	default:
		return model.TypeFlashcard
	}
}
