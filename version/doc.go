// Package version carries build metadata for the SDK and its tools.
//
//	go build -ldflags "-X github.com/kbukum/agentplatform/version.Version=1.4.0"
package version
