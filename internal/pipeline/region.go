package pipeline

import "strings"

// services names where a patient in a region should go for each level of care.
type services struct {
	Emergency string
	Urgent    string
	Routine   string
}

var regionalServices = map[string]services{
	"uk": {Emergency: "999", Urgent: "NHS 111", Routine: "your GP"},
	"us": {Emergency: "911", Urgent: "an urgent care center", Routine: "your primary care provider"},
	"ie": {Emergency: "112", Urgent: "your GP out-of-hours service", Routine: "your GP"},
}

var regionAliases = map[string]string{
	"gb": "uk", "england": "uk", "scotland": "uk", "wales": "uk", "northern ireland": "uk",
	"usa": "us", "united states": "us",
	"ireland": "ie", "roi": "ie",
}

var defaultServices = services{
	Emergency: "your local emergency number",
	Urgent:    "an urgent care service",
	Routine:   "your doctor",
}

func servicesFor(region string) services {
	key := strings.ToLower(strings.TrimSpace(region))
	if alias, ok := regionAliases[key]; ok {
		key = alias
	}
	if s, ok := regionalServices[key]; ok {
		return s
	}
	return defaultServices
}

func (s services) fill(text string) string {
	return strings.NewReplacer(
		"{emergency}", s.Emergency,
		"{urgent}", s.Urgent,
		"{routine}", s.Routine,
	).Replace(text)
}
