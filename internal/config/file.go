package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

const envConfigFile = "VOICECHAT_CONFIG"

// fileConfig is the optional YAML config file. Its values sit between the
// environment and the built-in defaults.
type fileConfig struct {
	RelayURL     string `yaml:"relay_url"`
	DirectoryURL string `yaml:"directory_url"`
	WebOrigin    string `yaml:"web_origin"`
	STUNServer   string `yaml:"stun_server"`
	TURN         struct {
		Server   string `yaml:"server"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"turn"`
	ForceRelay bool   `yaml:"force_relay"`
	Nickname   string `yaml:"nickname"`
	AudioFile  string `yaml:"audio_file"`
	Microphone bool   `yaml:"microphone"`
	RecordDir  string `yaml:"record_dir"`
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/voicechat/config.yaml or the
// platform equivalent.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "voicechat", "config.yaml")
}

// loadFile reads the config file named by the flag, the environment, or the
// default location. A missing default file is not an error; a missing
// explicit one is.
func loadFile(explicit string) (fileConfig, error) {
	var fc fileConfig

	path := pick(explicit, envConfigFile, "")
	required := path != ""
	if !required {
		path = DefaultConfigPath()
	}
	if path == "" {
		return fc, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return fc, nil
		}
		return fc, fmt.Errorf("config file: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return fc, fmt.Errorf("config file %s: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(content, &fc); err != nil {
		return fc, fmt.Errorf("config file %s: %w", path, err)
	}
	return fc, nil
}
