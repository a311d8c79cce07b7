package config

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"mcpbridge/internal/api"

	"github.com/robfig/cron/v3"
)

// Messages returned by ValidateDescriptor. They are surfaced verbatim to
// management API callers.
const (
	MsgNotObject       = "Server configuration must be an object."
	MsgCommandType     = "Command must be a string."
	MsgArgsType        = "Args must be an array of strings."
	MsgEnvType         = "Environment variables must be an object of strings."
	MsgURLType         = "URL must be a string."
	MsgURLFormat       = "Invalid URL format."
	MsgURLScheme       = "URL must use http or https."
	MsgMissingEndpoint = "Server configuration must have either 'command' or 'url' property."
)

const maxServerNameLength = 100

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

func descriptorError(field string, value interface{}, message string) *api.Error {
	return &api.Error{
		Kind:    api.KindConfig,
		Message: message,
		Err:     ValidationError{Field: field, Value: value, Message: message},
	}
}

// ValidateDescriptor checks a raw, JSON-decoded descriptor and converts it
// into its typed form. Rules are evaluated in order and the first failure is
// returned as a KindConfig *api.Error:
//
//  1. the value must be an object
//  2. if it has "command": command is a string (possibly empty), "args" (if
//     present) is an array of strings, "env" (if present) maps strings to
//     strings
//  3. else if it has "url": it is a string holding an absolute http(s) URL
//  4. otherwise it is rejected for lacking both
//
// A descriptor carrying both "command" and "url" is treated as stdio and the
// URL is dropped.
func ValidateDescriptor(raw interface{}) (api.ServerDescriptor, error) {
	obj, ok := raw.(map[string]interface{})
	if !ok || obj == nil {
		return api.ServerDescriptor{}, descriptorError("", raw, MsgNotObject)
	}

	if cmdVal, has := obj["command"]; has {
		command, ok := cmdVal.(string)
		if !ok {
			return api.ServerDescriptor{}, descriptorError("command", cmdVal, MsgCommandType)
		}
		desc := api.ServerDescriptor{Command: command}

		if argsVal, has := obj["args"]; has && argsVal != nil {
			args, ok := toStringSlice(argsVal)
			if !ok {
				return api.ServerDescriptor{}, descriptorError("args", argsVal, MsgArgsType)
			}
			desc.Args = args
		}

		if envVal, has := obj["env"]; has && envVal != nil {
			env, ok := toStringMap(envVal)
			if !ok {
				return api.ServerDescriptor{}, descriptorError("env", envVal, MsgEnvType)
			}
			desc.Env = env
		}
		return desc, nil
	}

	if urlVal, has := obj["url"]; has {
		rawURL, ok := urlVal.(string)
		if !ok {
			return api.ServerDescriptor{}, descriptorError("url", urlVal, MsgURLType)
		}
		if err := validateEndpointURL(rawURL); err != nil {
			return api.ServerDescriptor{}, err
		}
		return api.ServerDescriptor{URL: rawURL}, nil
	}

	return api.ServerDescriptor{}, descriptorError("", raw, MsgMissingEndpoint)
}

func validateEndpointURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return descriptorError("url", rawURL, MsgURLFormat)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return descriptorError("url", rawURL, MsgURLScheme)
	}
	return nil
}

func toStringSlice(v interface{}) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return append([]string{}, t...), true
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func toStringMap(v interface{}) (map[string]string, bool) {
	switch t := v.(type) {
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out, true
	case map[string]interface{}:
		out := make(map[string]string, len(t))
		for k, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// DescriptorToMap renders a typed descriptor back into the generic form
// accepted by ValidateDescriptor. Stores persist this form so that an empty
// stdio command survives a reload.
func DescriptorToMap(d api.ServerDescriptor) map[string]interface{} {
	m := map[string]interface{}{}
	if d.Transport() == api.TransportStdio {
		m["command"] = d.Command
		if len(d.Args) > 0 {
			args := make([]interface{}, len(d.Args))
			for i, a := range d.Args {
				args[i] = a
			}
			m["args"] = args
		}
		if len(d.Env) > 0 {
			env := make(map[string]interface{}, len(d.Env))
			for k, v := range d.Env {
				env[k] = v
			}
			m["env"] = env
		}
		return m
	}
	m["url"] = d.URL
	return m
}

// ValidateServerName checks that a registry name is usable as a key and as
// the prefix of exported plugin names.
func ValidateServerName(name string) error {
	if strings.TrimSpace(name) == "" {
		return descriptorError("name", name, "Server name is required.")
	}
	if len(name) > maxServerNameLength {
		return descriptorError("name", name, fmt.Sprintf("Server name must not exceed %d characters.", maxServerNameLength))
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return descriptorError("name", name, "Server name cannot contain whitespace.")
	}
	return nil
}

// ValidateBridgeConfig checks the application configuration.
func ValidateBridgeConfig(c BridgeConfig) error {
	var errs ValidationErrors

	switch c.Registry.Backend {
	case BackendFile, BackendSQLite, BackendMemory:
		if c.Registry.Backend != BackendMemory && c.Registry.Path == "" {
			errs.Add("registry.path", "is required", c.Registry.Path)
		}
	case BackendRedis:
		if c.Registry.RedisAddr == "" {
			errs.Add("registry.redisAddr", "is required for the redis backend")
		}
	default:
		errs.Add("registry.backend", "must be one of: file, sqlite, redis, memory", c.Registry.Backend)
	}

	s := c.Supervisor
	for field, d := range map[string]interface{ Nanoseconds() int64 }{
		"supervisor.startTimeout":     s.StartTimeout,
		"supervisor.pingTimeout":      s.PingTimeout,
		"supervisor.listToolsTimeout": s.ListToolsTimeout,
		"supervisor.callToolTimeout":  s.CallToolTimeout,
		"supervisor.stopGracePeriod":  s.StopGracePeriod,
	} {
		if d.Nanoseconds() <= 0 {
			errs.Add(field, "must be a positive duration", d)
		}
	}
	if s.BootConcurrency < 1 {
		errs.Add("supervisor.bootConcurrency", "must be at least 1", s.BootConcurrency)
	}
	if s.HealthCheckSchedule != "" {
		if _, err := cron.ParseStandard(s.HealthCheckSchedule); err != nil {
			errs.Add("supervisor.healthCheckSchedule", fmt.Sprintf("invalid schedule: %v", err), s.HealthCheckSchedule)
		}
	}

	if c.Server.ListenAddr == "" {
		errs.Add("server.listenAddr", "is required")
	}
	if c.Logging.Format != "" && c.Logging.Format != "text" && c.Logging.Format != "json" {
		errs.Add("logging.format", "must be one of: text, json", c.Logging.Format)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
