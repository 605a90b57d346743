package usecase

import (
	"regexp"
	"strings"

	"github.com/stationops/wrench/pkg/domain/model"
)

// Text heuristics for the planner. These are deliberately simple keyword
// matchers; anything smarter belongs in the retrieval pipeline, which is
// not part of this core.

var whitespaceRe = regexp.MustCompile(`\s+`)

func normalized(text string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), " ")
}

var ticketRequestTokens = []string{
	"ticket", "issue", "fault", "breakdown", "create", "assign", "repair",
}

func looksLikeTicketRequest(text string) bool {
	n := normalized(text)
	for _, token := range ticketRequestTokens {
		if strings.Contains(n, token) {
			return true
		}
	}
	return false
}

var electricalTokens = []string{"electrical", "wiring", "alternator", "battery"}

func deriveSpecialization(text string) string {
	n := normalized(text)
	for _, token := range electricalTokens {
		if strings.Contains(n, token) {
			return "electrical"
		}
	}
	return "engine"
}

func derivePriority(text string) int {
	n := normalized(text)
	for _, token := range []string{"urgent", "critical", "immediate", "asap"} {
		if strings.Contains(n, token) {
			return 4
		}
	}
	for _, token := range []string{"high", "major"} {
		if strings.Contains(n, token) {
			return 3
		}
	}
	for _, token := range []string{"low", "minor"} {
		if strings.Contains(n, token) {
			return 1
		}
	}
	return 2
}

// partKeywords is ordered: the first matching token wins
var partKeywords = []struct {
	token string
	name  string
}{
	{"injector", "Fuel Injector"},
	{"filter", "Oil Filter"},
	{"sensor", "Sensor"},
	{"alternator", "Alternator"},
	{"hose", "Hose"},
}

const defaultPartName = "Fuel Injector"

func extractPartName(text string) string {
	n := normalized(text)
	for _, kw := range partKeywords {
		if strings.Contains(n, kw.token) {
			return kw.name
		}
	}
	return defaultPartName
}

// Connector domain keyword sets. Connectors arrive sorted by name, so the
// pick is deterministic: the first connector whose name or URL contains
// any keyword wins.
var (
	supplyKeywords    = []string{"supply", "parts", "inventory"}
	workforceKeywords = []string{"employee", "workforce", "technician"}
	ticketingKeywords = []string{"ticket", "dispatch", "workorder"}
)

func pickConnector(connectors []*model.Connector, keywords []string) *model.Connector {
	for _, connector := range connectors {
		haystack := normalized(connector.Name + " " + connector.BaseURL)
		for _, keyword := range keywords {
			if strings.Contains(haystack, keyword) {
				return connector
			}
		}
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
