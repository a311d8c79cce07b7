package parser

import (
	"regexp"
	"strings"

	"github.com/google/shlex"
)

// KeyPlaceholder is written into rebuilt run commands when the install
// command carried no access key.
const KeyPlaceholder = "your-key-here"

// cliPackagePattern matches a scoped vendor CLI package such as
// @smithery/cli or @vendor/cli@latest.
var cliPackagePattern = regexp.MustCompile(`^@[A-Za-z0-9][\w.-]*/cli(@[\w.^~<>=*-]+)?$`)

// InstallCommand is a recognized vendor CLI install invocation:
//
//	npx -y @vendor/cli@latest install @org/foo-tool --client cursor --key ABC
type InstallCommand struct {
	// CLIPackage is the vendor CLI, including any version suffix.
	CLIPackage string
	// Package is the tool server package being installed.
	Package string
	// Client is the target client tag. It is captured but not carried into
	// the run command.
	Client string
	// Key is the access key, empty when absent.
	Key string
}

// ServerName derives the registry name from the last path segment of the
// package identifier, without a version suffix.
func (ic InstallCommand) ServerName() string {
	name := ic.Package
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	// "@org/foo@1.2" -> "foo"; a bare "@foo" keeps its leading @.
	if i := strings.LastIndex(name, "@"); i > 0 {
		name = name[:i]
	}
	return name
}

// RunArgs rebuilds the equivalent "run" invocation arguments for npx.
func (ic InstallCommand) RunArgs() []string {
	key := ic.Key
	if key == "" {
		key = KeyPlaceholder
	}
	return []string{"-y", ic.CLIPackage, "run", ic.Package, "--key", key}
}

// Descriptor returns the launch descriptor in its raw, pre-validation form.
func (ic InstallCommand) Descriptor() map[string]interface{} {
	args := ic.RunArgs()
	raw := make([]interface{}, len(args))
	for i, a := range args {
		raw[i] = a
	}
	return map[string]interface{}{
		"command": "npx",
		"args":    raw,
	}
}

// ParseInstallCommand recognizes
//
//	npx [-y|--yes] @<scope>/cli[@<version>] install <package> [flags...]
//
// Tokens follow shell quoting rules. --client and --key may appear in any
// order, before or after the package, as "--flag value" or "--flag=value".
// Unknown flags are ignored along with a following value token; a scoped
// "@org/name" token is never taken as a flag value.
func ParseInstallCommand(input string) (InstallCommand, bool) {
	tokens, err := shlex.Split(strings.TrimSpace(input))
	if err != nil || len(tokens) < 4 {
		return InstallCommand{}, false
	}

	i := 0
	if tokens[i] != "npx" {
		return InstallCommand{}, false
	}
	i++
	for i < len(tokens) && (tokens[i] == "-y" || tokens[i] == "--yes") {
		i++
	}
	if i >= len(tokens) || !cliPackagePattern.MatchString(tokens[i]) {
		return InstallCommand{}, false
	}
	ic := InstallCommand{CLIPackage: tokens[i]}
	i++
	if i >= len(tokens) || tokens[i] != "install" {
		return InstallCommand{}, false
	}
	i++

	// First token taken as the value of an unknown flag; used as the package
	// when no other positional token remains.
	var skipped string
	for i < len(tokens) {
		tok := tokens[i]
		i++

		if !strings.HasPrefix(tok, "-") {
			if ic.Package == "" {
				ic.Package = tok
			}
			continue
		}

		flag, value, hasValue := strings.Cut(tok, "=")
		switch flag {
		case "--client", "--key":
			if !hasValue {
				if i >= len(tokens) || strings.HasPrefix(tokens[i], "-") {
					continue
				}
				value = tokens[i]
				i++
			}
			if flag == "--client" {
				ic.Client = value
			} else {
				ic.Key = value
			}
		default:
			// Unknown "--flag value": the value is not the package, unless it
			// is a scoped name.
			if !hasValue && i < len(tokens) && !strings.HasPrefix(tokens[i], "-") && !strings.HasPrefix(tokens[i], "@") {
				if skipped == "" {
					skipped = tokens[i]
				}
				i++
			}
		}
	}

	if ic.Package == "" {
		ic.Package = skipped
	}
	if ic.Package == "" {
		return InstallCommand{}, false
	}
	return ic, true
}
