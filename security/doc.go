// Package security builds the TLS settings used when talking to the agent
// platform, including private CAs and mutual TLS client certificates.
//
//	cfg := security.TLSConfig{CAFile: "/etc/agentplatform/ca.pem"}
//	tlsCfg, err := cfg.Build()
package security
