package config

import (
	"os"
	"sync"
)

// dockerHostAlias reaches the host machine from inside a Docker container.
const dockerHostAlias = "host.docker.internal"

// inContainer reports whether the process runs inside a Docker container.
var inContainer = sync.OnceValue(func() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
})

// dialHost returns the store host to dial from this process.
func dialHost(host string) string {
	return rewriteLoopback(host, inContainer())
}

// rewriteLoopback points loopback hosts at the container host when running
// containerized, where a locally started MongoDB or PostgreSQL listens.
func rewriteLoopback(host string, containerized bool) string {
	if !containerized {
		return host
	}
	switch host {
	case "localhost", "127.0.0.1":
		return dockerHostAlias
	}
	return host
}
