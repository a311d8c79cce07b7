package parser

import (
	"errors"
	"fmt"
	"strings"

	"mcpbridge/internal/api"
	"mcpbridge/pkg/logging"
)

// MsgUnrecognized is returned when input matches no supported shape.
const MsgUnrecognized = "Unable to parse command. Please provide a valid install command or JSON configuration."

// Parse normalizes a free-form install command or JSON configuration blob
// into a server name and raw descriptor. Shapes are tried in order: the
// vendor CLI install command, then a JSON configuration. Failures are
// KindParse errors; Parse never panics.
//
// The returned descriptor is not validated. Callers pass it to
// config.ValidateDescriptor before persisting it.
func Parse(input string) (parsed api.ParsedServer, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Parser", fmt.Errorf("%v", r), "Recovered while parsing input")
			parsed, err = api.ParsedServer{}, api.NewParseError(MsgUnrecognized)
		}
	}()

	if strings.TrimSpace(input) == "" {
		return api.ParsedServer{}, api.NewParseError("Command is required.")
	}

	if ic, ok := ParseInstallCommand(input); ok {
		logging.Debug("Parser", "Recognized install command for %s via %s", ic.Package, ic.CLIPackage)
		return api.ParsedServer{Name: ic.ServerName(), Descriptor: ic.Descriptor()}, nil
	}

	name, descriptor, isJSON, jsonErr := ParseJSONConfig(input)
	if isJSON && jsonErr == nil {
		logging.Debug("Parser", "Recognized JSON configuration for %s", name)
		raw, ok := descriptor.(map[string]interface{})
		if !ok {
			return api.ParsedServer{}, api.NewParseError(
				fmt.Sprintf("Server %q configuration must be an object.", name))
		}
		return api.ParsedServer{Name: name, Descriptor: raw}, nil
	}
	if isJSON && !errors.Is(jsonErr, errNoServerMap) {
		return api.ParsedServer{}, api.NewParseError(fmt.Sprintf("%s (%v)", MsgUnrecognized, jsonErr))
	}

	return api.ParsedServer{}, api.NewParseError(MsgUnrecognized)
}
