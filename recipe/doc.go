// Package recipe reads build recipes (smithery.yaml, omnimcp.yaml) shipped
// with tool server repositories.
//
// Only the parts the gateway acts on are modelled: the start command type,
// which must be stdio, and the optional build section that relocates the
// Dockerfile and the build context.
package recipe
