// Package refiner implements the Execution Refiner agent: mandatory
// rule-based safety validation, bounded execution, and LLM-driven repair
// on failure. The safety gate is grounded on the teacher's
// internal/inference/verify_sql_tool.go static checks (parenthesis
// balance, illegal-alias detection), generalized here into the full
// deny-list the spec requires; the teacher's checks are advisory, ours
// is the one mandatory, non-bypassable pre-execution gate.
package refiner

import (
	"regexp"
	"strings"

	"queryresolve/internal/models"
)

// deniedPattern is one named regex in the mandatory safety deny-list.
type deniedPattern struct {
	name      string
	risk      models.RiskLevel
	re        *regexp.Regexp
	advice    string
}

var deniedPatterns = []deniedPattern{
	{
		name:   "stacked mutation statement",
		risk:   models.RiskCritical,
		re:     regexp.MustCompile(`(?i);\s*(DROP|DELETE|UPDATE|INSERT|CREATE|ALTER|TRUNCATE)\b`),
		advice: "remove any statement after the terminating semicolon",
	},
	{
		name:   "UNION SELECT",
		risk:   models.RiskHigh,
		re:     regexp.MustCompile(`(?i)\bUNION\s+(ALL\s+)?SELECT\b`),
		advice: "UNION SELECT is not permitted; rewrite as a single SELECT or a JOIN",
	},
	{
		name:   "dynamic EXEC call",
		risk:   models.RiskCritical,
		re:     regexp.MustCompile(`(?i)\bEXEC\s*\(`),
		advice: "dynamic EXEC() calls are not permitted",
	},
	{
		name:   "classic injection heuristic",
		risk:   models.RiskCritical,
		re:     regexp.MustCompile(`(?i)('\s*OR\s*'1'\s*=\s*'1|\bOR\s+1\s*=\s*1\b|\b1\s*=\s*1\b)`),
		advice: "tautology-style conditions are not permitted",
	},
	{
		name:   "dangerous function call",
		risk:   models.RiskCritical,
		re:     regexp.MustCompile(`(?i)\b(SLEEP|BENCHMARK|LOAD_FILE)\s*\(|\bINTO\s+(OUTFILE|DUMPFILE)\b`),
		advice: "functions that touch the filesystem or stall the server are not permitted",
	},
	{
		name:   "shell/procedure escape",
		risk:   models.RiskCritical,
		re:     regexp.MustCompile(`(?i)\b(xp_cmdshell|sp_executesql)\b`),
		advice: "stored-procedure shell escapes are not permitted",
	},
}

var leadingKeywordRe = regexp.MustCompile(`(?is)^\s*(SELECT|WITH)\b`)

// ValidateSafety is the mandatory, deterministic pre-execution gate
// (spec §4.4). It never calls out to an LLM and never blocks on I/O.
func ValidateSafety(sql string) models.SafetyReport {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return models.SafetyReport{
			IsSafe:          false,
			RiskLevel:       models.RiskCritical,
			DetectedPattern: "empty statement",
			Recommendations: []string{"provide a non-empty SQL statement"},
		}
	}

	if !leadingKeywordRe.MatchString(trimmed) {
		return models.SafetyReport{
			IsSafe:          false,
			RiskLevel:       models.RiskCritical,
			DetectedPattern: "leading keyword is not SELECT or WITH",
			Recommendations: []string{"only read-only SELECT/WITH statements are permitted"},
		}
	}

	for _, p := range deniedPatterns {
		if p.re.MatchString(trimmed) {
			return models.SafetyReport{
				IsSafe:          false,
				RiskLevel:       p.risk,
				DetectedPattern: p.name,
				Recommendations: []string{p.advice},
			}
		}
	}

	return models.SafetyReport{
		IsSafe:          true,
		RiskLevel:       models.RiskLow,
		Recommendations: nil,
	}
}
