package cli

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/ini.v1"
)

// ClientConfig represents connection defaults read from config files.
type ClientConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
}

// ReadClientConfig reads connection defaults from the standard config file
// locations. Later files override earlier ones; missing files are skipped.
func ReadClientConfig(configFilePath string) (*ClientConfig, error) {
	config := &ClientConfig{}

	configFiles := []string{
		"/etc/go-pgclirc",
		filepath.Join(os.Getenv("HOME"), ".go-pgclirc"),
	}
	if configFilePath != "" {
		configFiles = append(configFiles, configFilePath)
	}

	for _, configFile := range configFiles {
		if err := readConfigFile(configFile, config); err != nil {
			continue
		}
	}

	return config, nil
}

func readConfigFile(filename string, config *ClientConfig) error {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return err
	}

	cfg, err := ini.Load(filename)
	if err != nil {
		return err
	}

	section, err := cfg.GetSection("connection")
	if err != nil {
		return nil
	}

	if host := section.Key("host").String(); host != "" {
		config.Host = host
	}
	if portStr := section.Key("port").String(); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			config.Port = port
		}
	}
	if user := section.Key("username").String(); user != "" {
		config.Username = user
	}
	if password := section.Key("password").String(); password != "" {
		config.Password = password
	}
	if database := section.Key("database").String(); database != "" {
		config.Database = database
	}

	return nil
}

// MergeConfig overlays command line values on top of config file values.
// Command line arguments take precedence.
func MergeConfig(config *ClientConfig, cliHost string, cliPort int, cliUser, cliPassword, cliDatabase string) *ClientConfig {
	merged := &ClientConfig{
		Host:     config.Host,
		Port:     config.Port,
		Username: config.Username,
		Password: config.Password,
		Database: config.Database,
	}

	if cliHost != "" {
		merged.Host = cliHost
	}
	if cliPort != 0 {
		merged.Port = cliPort
	}
	if cliUser != "" {
		merged.Username = cliUser
	}
	if cliPassword != "" {
		merged.Password = cliPassword
	}
	if cliDatabase != "" {
		merged.Database = cliDatabase
	}

	return merged
}
