package validation

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/firm-ops/internal/domain"
)

// FieldType is the primitive type expected for a command parameter.
type FieldType string

const (
	FieldString    FieldType = "string"
	FieldNumber    FieldType = "number"
	FieldBoolean   FieldType = "boolean"
	FieldEnum      FieldType = "enum"
	FieldSnowflake FieldType = "snowflake"
	FieldDate      FieldType = "date"
)

// snowflakeRegex matches chat platform ids.
var snowflakeRegex = regexp.MustCompile(`^\d{17,20}$`)

// usernameRegex matches game account names.
var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)

// uuidRegex matches record ids.
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

const dateLayout = "2006-01-02"

// FieldRule constrains one parameter. Zero values disable a constraint.
type FieldRule struct {
	Type      FieldType
	Required  bool
	MinLength int
	MaxLength int
	Min       *float64
	Max       *float64
	Pattern   *regexp.Regexp
	Enum      []string
	Custom    func(value any, params map[string]any) []Issue
}

// RuleSet maps field names to rules.
type RuleSet map[string]FieldRule

// CommandValidator validates raw command parameters against a rule table keyed
// by "entity:operation".
type CommandValidator struct {
	rules    map[string]RuleSet
	validate *validator.Validate
}

// NewCommandValidator returns a validator preloaded with the firm's command rules.
func NewCommandValidator() *CommandValidator {
	v := validator.New()
	_ = v.RegisterValidation("snowflake", func(fl validator.FieldLevel) bool {
		return snowflakeRegex.MatchString(fl.Field().String())
	})
	cv := &CommandValidator{rules: map[string]RuleSet{}, validate: v}
	for key, rs := range defaultRules() {
		cv.Register(key, rs)
	}
	return cv
}

// CommandKey builds the rule table key.
func CommandKey(entity, operation string) string {
	return entity + ":" + operation
}

// Register installs or replaces the rule set for key.
func (c *CommandValidator) Register(key string, rules RuleSet) {
	c.rules[key] = rules
}

// Has reports whether a rule set exists for key.
func (c *CommandValidator) Has(key string) bool {
	_, ok := c.rules[key]
	return ok
}

// ValidateCommand checks params against the registered rule set. Every violated
// constraint is reported; unknown commands pass untouched.
func (c *CommandValidator) ValidateCommand(entity, operation string, params map[string]any) Result {
	res := NewResult()
	rules, ok := c.rules[CommandKey(entity, operation)]
	if !ok {
		return res
	}

	fields := make([]string, 0, len(rules))
	for name := range rules {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	for _, name := range fields {
		rule := rules[name]
		value, present := params[name]
		if !present || isEmpty(value) {
			if rule.Required {
				res.Add(fieldIssue(CodeRequired, name, fmt.Sprintf("%s is required", name)))
			}
			continue
		}
		for _, issue := range c.checkField(name, rule, value, params) {
			res.Add(issue)
		}
	}
	return res
}

func (c *CommandValidator) checkField(name string, rule FieldRule, value any, params map[string]any) []Issue {
	var issues []Issue
	add := func(code, msg string) {
		issues = append(issues, fieldIssue(code, name, msg))
	}

	switch rule.Type {
	case FieldString, FieldEnum, FieldSnowflake, FieldDate:
		s, ok := value.(string)
		if !ok {
			add(CodeInvalidType, fmt.Sprintf("%s must be a %s", name, rule.Type))
			return issues
		}
		if rule.MinLength > 0 && c.validate.Var(s, fmt.Sprintf("min=%d", rule.MinLength)) != nil {
			add(CodeInvalidLength, fmt.Sprintf("%s must be at least %d characters", name, rule.MinLength))
		}
		if rule.MaxLength > 0 && c.validate.Var(s, fmt.Sprintf("max=%d", rule.MaxLength)) != nil {
			add(CodeInvalidLength, fmt.Sprintf("%s must be at most %d characters", name, rule.MaxLength))
		}
		if rule.Type == FieldSnowflake && c.validate.Var(s, "snowflake") != nil {
			add(CodeInvalidType, fmt.Sprintf("%s must be a valid Discord ID", name))
		}
		if rule.Type == FieldDate && c.validate.Var(s, "datetime="+dateLayout) != nil {
			add(CodeInvalidType, fmt.Sprintf("%s must be a date (YYYY-MM-DD)", name))
		}
		if rule.Type == FieldEnum && !slices.Contains(rule.Enum, s) {
			add(CodeInvalidEnum, fmt.Sprintf("%s must be one of: %s", name, strings.Join(rule.Enum, ", ")))
		}
		if rule.Pattern != nil && !rule.Pattern.MatchString(s) {
			add(CodePatternMismatch, fmt.Sprintf("%s has an invalid format", name))
		}
	case FieldNumber:
		n, ok := toFloat(value)
		if !ok {
			add(CodeInvalidType, fmt.Sprintf("%s must be a number", name))
			return issues
		}
		if rule.Min != nil && c.validate.Var(n, fmt.Sprintf("gte=%v", *rule.Min)) != nil {
			add(CodeOutOfRange, fmt.Sprintf("%s must be at least %v", name, *rule.Min))
		}
		if rule.Max != nil && c.validate.Var(n, fmt.Sprintf("lte=%v", *rule.Max)) != nil {
			add(CodeOutOfRange, fmt.Sprintf("%s must be at most %v", name, *rule.Max))
		}
	case FieldBoolean:
		if _, ok := value.(bool); !ok {
			add(CodeInvalidType, fmt.Sprintf("%s must be true or false", name))
			return issues
		}
	}

	if rule.Custom != nil {
		for _, issue := range rule.Custom(value, params) {
			if issue.Field == "" {
				issue.Field = name
			}
			issues = append(issues, issue)
		}
	}
	return issues
}

func fieldIssue(code, field, msg string) Issue {
	return Issue{Severity: SeverityError, Code: code, Field: field, Message: msg}
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func roleLabels() []string {
	roles := domain.AllStaffRoles()
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, r.String())
	}
	return out
}

func defaultRules() map[string]RuleSet {
	userID := FieldRule{Type: FieldSnowflake, Required: true}
	optionalRole := FieldRule{Type: FieldEnum, Enum: roleLabels()}
	reason := FieldRule{Type: FieldString, MaxLength: 500}
	username := FieldRule{Type: FieldString, Required: true, MinLength: 3, MaxLength: 20, Pattern: usernameRegex}
	recordID := FieldRule{Type: FieldString, Required: true, Pattern: uuidRegex}

	return map[string]RuleSet{
		"staff:hire": {
			"user_id":  userID,
			"username": username,
			"role": {
				Type:     FieldEnum,
				Required: true,
				Enum:     roleLabels(),
				Custom:   singletonRoleNotice,
			},
			"reason": reason,
			"bypass": {Type: FieldBoolean},
		},
		"staff:promote": {
			"user_id": userID,
			"role":    optionalRole,
			"reason":  reason,
			"bypass":  {Type: FieldBoolean},
		},
		"staff:demote": {
			"user_id": userID,
			"role":    optionalRole,
			"reason":  reason,
			"bypass":  {Type: FieldBoolean},
		},
		"staff:fire": {
			"user_id": userID,
			"reason":  reason,
		},
		"staff:set-status": {
			"user_id": userID,
			"status": {
				Type:     FieldEnum,
				Required: true,
				Enum:     []string{string(domain.StaffStatusActive), string(domain.StaffStatusInactive)},
			},
			"reason": reason,
			"bypass": {Type: FieldBoolean},
		},
		"staff:info": {
			"user_id": userID,
		},
		"case:create": {
			"client_id":       userID,
			"client_username": username,
			"title":           {Type: FieldString, Required: true, MinLength: 3, MaxLength: 100},
			"description":     {Type: FieldString, MaxLength: 2000},
			"priority":        {Type: FieldEnum, Enum: []string{"low", "medium", "high", "urgent"}},
		},
		"case:assign": {
			"case_id":   recordID,
			"lawyer_id": userID,
			"lead":      {Type: FieldBoolean},
		},
		"case:auto-assign": {
			"case_id": recordID,
		},
		"case:close": {
			"case_id": recordID,
			"result": {
				Type:     FieldEnum,
				Required: true,
				Enum:     []string{"win", "loss", "settlement", "dismissed"},
			},
			"notes": {Type: FieldString, MaxLength: 1000},
		},
		"job:post": {
			"title":       {Type: FieldString, Required: true, MinLength: 3, MaxLength: 100},
			"description": {Type: FieldString, MaxLength: 2000},
			"role": {
				Type:     FieldEnum,
				Required: true,
				Enum:     roleLabels(),
				Custom:   singletonRoleNotice,
			},
		},
		"job:close": {
			"job_id": recordID,
		},
		"job:apply": {
			"job_id":   recordID,
			"username": username,
		},
		"application:review": {
			"application_id": recordID,
			"decision": {
				Type:     FieldEnum,
				Required: true,
				Enum:     []string{"accepted", "rejected"},
				Custom:   rejectionNotesAdvice,
			},
			"notes": {Type: FieldString, MaxLength: 1000},
		},
		"role:sync": {
			"user_id": userID,
		},
		"audit:list": {
			"limit": {Type: FieldNumber, Min: ptrFloat(1), Max: ptrFloat(500)},
			"since": {Type: FieldDate},
		},
	}
}

func singletonRoleNotice(value any, _ map[string]any) []Issue {
	if s, _ := value.(string); s == string(domain.StaffRoleManagingPartner) {
		return []Issue{{
			Severity: SeverityInfo,
			Code:     CodeSingletonRole,
			Message:  "Managing Partner is a single-holder rank",
		}}
	}
	return nil
}

func rejectionNotesAdvice(value any, params map[string]any) []Issue {
	if s, _ := value.(string); s != "rejected" {
		return nil
	}
	if notes, _ := params["notes"].(string); strings.TrimSpace(notes) != "" {
		return nil
	}
	return []Issue{{
		Severity: SeverityWarning,
		Code:     CodeRequired,
		Message:  "rejections should include notes for the applicant",
	}}
}

func ptrFloat(v float64) *float64 {
	return &v
}
