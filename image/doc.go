// Package image builds runtime images for materialized repositories.
//
// Builder drives an Engine: it logs in to the configured registry (when
// credentials are present) and builds a fresh, uniquely tagged image for
// every provisioning cycle. DockerEngine talks to the local Docker daemon
// through the Docker SDK and honours .dockerignore when packing the build
// context.
package image
