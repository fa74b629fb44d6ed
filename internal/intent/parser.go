// Package intent maps free-text commands to structured intents.
package intent

import (
	"regexp"
	"strings"

	"github.com/mpataki/arena/internal/models"
)

type pattern struct {
	intent models.IntentKind
	re     *regexp.Regexp
}

// Patterns are tried in order; the first match wins.
var patterns = []pattern{
	{
		models.IntentCreateAgent,
		regexp.MustCompile(`(?i)(?:create|build|make)\s+(?:(?:a|an)\s+)?agent\s+(?:(?:named|called)\s+)?(?P<name>[\w\- ]+)`),
	},
	{
		models.IntentDefineTool,
		regexp.MustCompile(`(?i)(?:define|add)\s+(?:(?:a|an)\s+)?tool\s+(?:(?:called|named)\s+)?(?P<name>[\w\- ]+?)\s+that\s+(?P<desc>.+)`),
	},
	{
		models.IntentCreateWorkflow,
		regexp.MustCompile(`(?i)(?:create|setup)\s+(?:(?:a|an)\s+)?workflow\s+(?:(?:named|called)\s+)?(?P<name>[\w\- ]+)`),
	},
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse returns the first matching intent, or IntentUnknown with empty
// params.
func (p *Parser) Parse(text string) models.Intent {
	for _, pat := range patterns {
		m := pat.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		params := make(map[string]string)
		for i, name := range pat.re.SubexpNames() {
			if name == "" || i >= len(m) {
				continue
			}
			params[name] = strings.TrimSpace(m[i])
		}
		return models.Intent{Intent: pat.intent, Params: params, Original: text}
	}

	return models.Intent{Intent: models.IntentUnknown, Params: map[string]string{}, Original: text}
}
