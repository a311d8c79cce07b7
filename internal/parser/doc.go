// Package parser turns what a user pastes into the "add server" box into a
// server name and launch descriptor.
//
// Two shapes are recognized:
//
//	npx -y @vendor/cli@latest install @org/foo-tool --client cursor --key ABC
//
// becomes server "foo-tool" launched as
//
//	npx -y @vendor/cli@latest run @org/foo-tool --key ABC
//
// and
//
//	{"mcpServers": {"github": {"command": "npx", "args": ["-y", "gh-mcp"]}}}
//
// becomes server "github" with the descriptor copied verbatim. Only the
// first server of a multi-server blob is taken.
package parser
