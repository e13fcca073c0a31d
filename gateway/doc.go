// Package gateway provisions a tool server from a repository reference and
// serves it over streaming HTTP.
//
// Provisioning resolves the reference, clones the repository, locates the
// recipe and build file, builds an image, starts it and bridges its stdio.
// A failed attempt is latched: every later connection is rejected with the
// same *ProvisionError until the gateway restarts.
//
// Run is the command line entry point:
//
//	mcpgate -r https://github.com/acme/tools/tree/main/servers/search -e API_KEY=xyz
package gateway
