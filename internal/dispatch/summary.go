package dispatch

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/MJE43/mapgame-session-go/internal/engine"
)

const (
	summaryKey      = "Score: %s of %s points (%.1f%%) across %d prompts"
	summaryEmptyKey = "Score: %s points across %d prompts"
)

var summaryCatalog = map[language.Tag]map[string]string{
	language.English: {
		summaryKey:      "Score: %s of %s points (%.1f%%) across %d prompts",
		summaryEmptyKey: "Score: %s points across %d prompts",
	},
	language.BrazilianPortuguese: {
		summaryKey:      "Pontuação: %s de %s pontos (%.1f%%) em %d perguntas",
		summaryEmptyKey: "Pontuação: %s pontos em %d perguntas",
	},
}

var registerSummaries = sync.OnceValue(func() error {
	return registerCatalog(message.SetString, summaryCatalog)
})

func registerCatalog(set func(language.Tag, string, string) error, cat map[language.Tag]map[string]string) error {
	var errs []error
	for tag, msgs := range cat {
		for key, msg := range msgs {
			if err := set(tag, key, msg); err != nil {
				errs = append(errs, fmt.Errorf("summary %s %q: %w", tag, key, err))
			}
		}
	}
	return errors.Join(errs...)
}

var hundred = decimal.NewFromInt(100)

// GameOver is the getGameOverContent payload.
type GameOver struct {
	Score   engine.Score `json:"score"`
	Summary string       `json:"summary"`
}

func summarize(p *message.Printer, score engine.Score) string {
	if !score.Possible.IsPositive() {
		return p.Sprintf(summaryEmptyKey, score.Total.String(), len(score.Rows))
	}
	pct := score.Total.Mul(hundred).Div(score.Possible).InexactFloat64()
	return p.Sprintf(summaryKey, score.Total.String(), score.Possible.String(), pct, len(score.Rows))
}
