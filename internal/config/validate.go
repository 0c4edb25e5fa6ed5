package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"remindbot/internal/reminder"
)

var validate = newValidator()

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Environment fallbacks, applied only when the file leaves the field empty.
const (
	EnvBotToken        = "TELEGRAM_BOT_TOKEN"
	EnvDatabaseURL     = "DATABASE_URL"
	EnvTrialDays       = "TRIAL_DURATION_DAYS"
	EnvServerUTCOffset = "SERVER_UTC_OFFSET"
)

// ApplyEnv fills empty fields from the environment using lookup
// (os.LookupEnv when nil).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(k string) string {
		v, _ := lookup(k)
		return strings.TrimSpace(v)
	}

	if c.Telegram.Token == "" {
		c.Telegram.Token = get(EnvBotToken)
	}
	if c.Storage.DSN == "" {
		if dsn := get(EnvDatabaseURL); dsn != "" {
			c.Storage.DSN = dsn
			if c.Storage.Driver == "" {
				c.Storage.Driver = "postgres"
			}
		}
	}
	if c.Reminders.TrialDays == 0 {
		if v := get(EnvTrialDays); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", EnvTrialDays, err)
			}
			c.Reminders.TrialDays = n
		}
	}
	if c.Reminders.ServerUTCOffset == nil {
		if v := get(EnvServerUTCOffset); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", EnvServerUTCOffset, err)
			}
			c.Reminders.ServerUTCOffset = &n
		}
	}
	return nil
}

// Validate checks struct tags, duration strings and the reminder schedule.
func Validate(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	var problems []string
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			problems = append(problems, fieldError(fe))
		}
	}
	for path, raw := range c.durationFields() {
		if _, err := ParseDurationField(path, raw); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if s := strings.TrimSpace(c.Reminders.Schedule); s != "" {
		sc, err := reminder.ParseSchedule(s)
		if err == nil && sc.Kind == reminder.ScheduleCron {
			_, err = cron.ParseStandard(sc.Cron)
		}
		if err != nil {
			problems = append(problems, "reminders.schedule: "+err.Error())
		}
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}

func fieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", field, fe.Param())
	case "hostname_port":
		return field + " must be host:port"
	default:
		return field + " is invalid"
	}
}
