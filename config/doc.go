// Package config loads client settings from a config.yml, an optional .env
// file and AGENTPLATFORM_* environment variables, using viper.
//
//	cfg, err := config.Load(config.AppName, config.WithConfigFile("agent.yml"))
//	a, err := httpclient.New(cfg.HTTP())
package config
