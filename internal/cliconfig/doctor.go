// Package cliconfig implements the setup diagnostics behind `ucaibot doctor`.
package cliconfig

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ucai/ucaibot/internal/config"
	"github.com/ucai/ucaibot/internal/provider"
)

var resolveBackend = provider.Resolve

type DoctorStatus string

const (
	DoctorPass DoctorStatus = "pass"
	DoctorWarn DoctorStatus = "warn"
	DoctorFail DoctorStatus = "fail"
)

type DoctorCheck struct {
	Name    string
	Status  DoctorStatus
	Message string
}

type DoctorReport struct {
	Checks []DoctorCheck
}

func (r DoctorReport) HasFailures() bool {
	for _, c := range r.Checks {
		if c.Status == DoctorFail {
			return true
		}
	}
	return false
}

func (r *DoctorReport) add(name string, status DoctorStatus, format string, args ...any) {
	r.Checks = append(r.Checks, DoctorCheck{Name: name, Status: status, Message: fmt.Sprintf(format, args...)})
}

// RunDoctor checks the config file, the loaded settings and the generation
// backend. Problems are reported as checks; the error is reserved for
// failures of the doctor itself.
func RunDoctor() (DoctorReport, error) {
	report := DoctorReport{Checks: make([]DoctorCheck, 0, 8)}

	cfgPath, err := config.ConfigPath()
	if err != nil {
		report.add("config_path", DoctorFail, "cannot resolve config path: %v", err)
		return report, nil
	}

	if _, err := os.Stat(cfgPath); err != nil {
		if os.IsNotExist(err) {
			report.add("config_file", DoctorWarn, "config file not found at %s (defaults and environment will be used)", cfgPath)
		} else {
			report.add("config_file", DoctorFail, "cannot access config file: %v", err)
		}
	} else {
		report.add("config_file", DoctorPass, "config file found at %s", cfgPath)
	}

	cfg, err := config.Load()
	if err != nil {
		report.add("config_load", DoctorFail, "config load failed: %v", err)
		return report, nil
	}
	report.add("config_load", DoctorPass, "config loaded successfully")

	if err := cfg.Validate(config.ModeRun); err != nil {
		report.add("config_valid", DoctorFail, "%s", strings.ReplaceAll(err.Error(), "\n", "; "))
	} else {
		report.add("config_valid", DoctorPass, "all required settings present")
	}

	checkTokenPrefix(&report, "slack_bot_token", "SLACK_BOT_TOKEN", cfg.Slack.BotToken, "xoxb-")
	checkTokenPrefix(&report, "slack_app_token", "SLACK_APP_TOKEN", cfg.Slack.AppToken, "xapp-")

	if cfg.Slack.BotUserID == "" {
		report.add("slack_bot_user", DoctorWarn, "SLACK_BOT_USER_ID not set; it will be resolved with auth.test at startup")
	} else {
		report.add("slack_bot_user", DoctorPass, "bot user id: %s", cfg.Slack.BotUserID)
	}

	gen, err := resolveBackend(cfg)
	switch {
	case errors.Is(err, provider.ErrLocalUnsupported):
		report.add("backend", DoctorFail, "local backend unavailable: %v", err)
	case err != nil:
		report.add("backend", DoctorFail, "%v", err)
	default:
		report.add("backend", DoctorPass, "%s backend with model %q", gen.Name(), gen.DefaultModel())
		if c, ok := gen.(io.Closer); ok {
			_ = c.Close()
		}
	}

	if p := cfg.Agent.RandomResponseChance; p == 0 {
		report.add("random_chance", DoctorWarn, "RANDOM_RESPONSE_CHANCE is 0; the bot replies to mentions only")
	}
	return report, nil
}

func checkTokenPrefix(report *DoctorReport, name, env, value, prefix string) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return
	case !strings.HasPrefix(value, prefix):
		report.add(name, DoctorWarn, "%s does not start with %q", env, prefix)
	default:
		report.add(name, DoctorPass, "%s has the expected %q prefix", env, prefix)
	}
}
