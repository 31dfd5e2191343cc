package config

import (
	"os"
	"sync"
)

var (
	inContainerOnce   sync.Once
	inContainerResult bool
)

// IsRunningInContainer reports whether the process runs inside a Docker
// container, detected through /.dockerenv. Cached after the first call.
func IsRunningInContainer() bool {
	inContainerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		inContainerResult = err == nil
	})
	return inContainerResult
}

// ResolveLocalHost rewrites loopback hosts to host.docker.internal when
// running in a container so that a warehouse on the host machine stays
// reachable. Any other host is returned unchanged.
func ResolveLocalHost(host string) string {
	if !IsRunningInContainer() {
		return host
	}
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return "host.docker.internal"
	}
	return host
}
