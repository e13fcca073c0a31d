// Package reference resolves repository URLs into references.
//
// Both the HTTPS form (optionally narrowed with /tree/<branch>/<path>) and the
// SSH form are accepted:
//
//	https://github.com/acme/tools
//	https://github.com/acme/tools/tree/main/servers/search
//	git@github.com:acme/tools.git
//
// Resolution is pure string parsing; no network access takes place.
package reference
