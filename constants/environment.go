package constants

import (
	"fmt"
	"strings"
)

// Environment is the prompt deployment environment on the prompt server.
type Environment string

const (
	EnvironmentProduction  Environment = "Production"
	EnvironmentDevelopment Environment = "Development"
)

// Environments lists the selectable environments, default first.
var Environments = []Environment{EnvironmentProduction, EnvironmentDevelopment}

// DefaultPromptName is used when no prompt name is given.
const DefaultPromptName = "sample"

// DefaultPezzoServerURL is the prompt proxy used when none is configured.
const DefaultPezzoServerURL = "https://elsai-prompts-proxy.optisolbusiness.com"

// ParseEnvironment matches case-insensitively; empty means Production.
func ParseEnvironment(s string) (Environment, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return EnvironmentProduction, nil
	}
	for _, e := range Environments {
		if strings.EqualFold(v, string(e)) {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown environment %q", s)
}
