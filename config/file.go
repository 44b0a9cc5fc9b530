package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// File mirrors the subset of Config that may be set from the YAML
// config file.  Pointer fields distinguish "unset" from a zero value.
type File struct {
	DumbTerminal     *bool    `yaml:"dumb_terminal"`
	Theme            string   `yaml:"theme"`
	History          string   `yaml:"history"`
	NoHistory        *bool    `yaml:"no_history"`
	InitNamespace    string   `yaml:"init_ns"`
	ExitTokens       []string `yaml:"exit_tokens"`
	HighlightDelayMS int      `yaml:"highlight_delay_ms"`

	Socket struct {
		Host       string `yaml:"host"`
		Port       int    `yaml:"port"`
		ReadBuffer int    `yaml:"read_buffer"`
	} `yaml:"socket"`

	Expose struct {
		Gateway       string `yaml:"gateway"`
		RemotePort    int    `yaml:"remote_port"`
		RemoteBind    string `yaml:"remote_bind"`
		SSHKey        string `yaml:"ssh_key"`
		SSHAgent      *bool  `yaml:"ssh_agent"`
		StrictHostKey *bool  `yaml:"strict_hostkey"`
		KnownHosts    string `yaml:"known_hosts"`
	} `yaml:"expose"`

	Verbose *int `yaml:"verbose"`
}

// DefaultConfigPath returns ~/.formrepl.yaml, or "" without a home.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, DefaultConfigFile)
}

// LoadFile overlays the YAML file at path onto cfg.  A missing file is
// not an error when optional is true (the implicit default path).
func LoadFile(cfg *Config, path string, optional bool) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	f.apply(cfg)
	return nil
}

func (f *File) apply(cfg *Config) {
	if f.DumbTerminal != nil {
		cfg.DumbTerminal = *f.DumbTerminal
	}
	if f.Theme != "" {
		cfg.Theme = f.Theme
	}
	if f.History != "" {
		cfg.HistoryPath = f.History
	}
	if f.NoHistory != nil {
		cfg.NoHistory = *f.NoHistory
	}
	if f.InitNamespace != "" {
		cfg.InitNamespace = f.InitNamespace
	}
	if len(f.ExitTokens) > 0 {
		cfg.ExitTokens = f.ExitTokens
	}
	if f.HighlightDelayMS > 0 {
		cfg.HighlightDelay = time.Duration(f.HighlightDelayMS) * time.Millisecond
	}

	if f.Socket.Host != "" {
		cfg.SocketHost = f.Socket.Host
	}
	if f.Socket.Port > 0 {
		cfg.SocketPort = f.Socket.Port
	}
	if f.Socket.ReadBuffer > 0 {
		cfg.ReadBufSize = f.Socket.ReadBuffer
	}

	if f.Expose.Gateway != "" {
		cfg.ExposeSpec = f.Expose.Gateway
	}
	if f.Expose.RemotePort > 0 {
		cfg.RemotePort = f.Expose.RemotePort
	}
	if f.Expose.RemoteBind != "" {
		cfg.RemoteBindAddress = f.Expose.RemoteBind
	}
	if f.Expose.SSHKey != "" {
		cfg.SSHKeyPath = f.Expose.SSHKey
	}
	if f.Expose.SSHAgent != nil {
		cfg.UseSSHAgent = *f.Expose.SSHAgent
	}
	if f.Expose.StrictHostKey != nil {
		cfg.StrictHostKey = *f.Expose.StrictHostKey
	}
	if f.Expose.KnownHosts != "" {
		cfg.KnownHostsPath = f.Expose.KnownHosts
	}

	if f.Verbose != nil {
		cfg.Verbose = *f.Verbose
	}
}
