/*
   Copyright 2022 The StratusLab pdisk Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package configuration

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/stratuslab/pdisk"
	"github.com/stratuslab/pdisk/pkg/pdiskbackend"
	"github.com/stratuslab/pdisk/utils"
	"github.com/stratuslab/pdisk/utils/log"
	"gopkg.in/ini.v1"
)

// proxy section names are host names, so sections are read with ini
// directly instead of through dotted viper keys
var loadOptions = ini.LoadOptions{InsensitiveSections: true, InsensitiveKeys: true}

var decodeHook = mapstructure.ComposeDecodeHookFunc(
	secondsToDurationHookFunc(),
	mapstructure.StringToTimeDurationHookFunc(),
	mapstructure.StringToSliceHookFunc(","),
)

// Main is the [main] section.
type Main struct {
	ISCSIProxies      []string      `mapstructure:"iscsi_proxies"`
	LogDirection      string        `mapstructure:"log_direction"`
	LogFile           string        `mapstructure:"log_file"`
	LogLevel          string        `mapstructure:"log_level"`
	MgtUserName       string        `mapstructure:"mgt_user_name"`
	MgtUserPrivateKey string        `mapstructure:"mgt_user_private_key"`
	SSHPort           int           `mapstructure:"ssh_port"`
	CommandTimeout    time.Duration `mapstructure:"command_timeout"`
	JournalPath       string        `mapstructure:"journal_path"`
}

// Config is a loaded configuration file. Proxies holds one backend
// section per entry of iscsi_proxies.
type Config struct {
	Path    string
	Main    Main
	Proxies map[string]pdiskbackend.BackendConfig
}

// Path returns the configuration file to read: the explicit path, the
// PDISK_CONFIG environment variable or the default location.
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(pdisk.ConfigEnv); env != "" {
		return env
	}
	return pdisk.DefaultConfigFile
}

// Load reads and validates the INI configuration file at path.
func Load(path string) (*Config, error) {
	f, err := ini.LoadSources(loadOptions, path)
	if err != nil {
		return nil, &pdiskbackend.ConfigurationError{Reason: fmt.Sprintf("failed to read %s: %v", path, err)}
	}
	c, err := decode(f)
	if err != nil {
		return nil, err
	}
	c.Path = path
	return c, nil
}

func decode(f *ini.File) (*Config, error) {
	mainSection, err := f.GetSection(pdisk.MainSection)
	if err != nil {
		return nil, &pdiskbackend.ConfigurationError{Section: pdisk.MainSection, Reason: "section is missing"}
	}
	c := &Config{Proxies: map[string]pdiskbackend.BackendConfig{}}
	if err := decodeSection(mainSection, &c.Main); err != nil {
		return nil, &pdiskbackend.ConfigurationError{Section: pdisk.MainSection, Reason: err.Error()}
	}
	c.Main.ISCSIProxies = utils.TrimList(c.Main.ISCSIProxies)

	if err := validateMain(c.Main); err != nil {
		return nil, err
	}

	for _, proxy := range c.Main.ISCSIProxies {
		section, err := f.GetSection(proxy)
		if err != nil {
			return nil, &pdiskbackend.ConfigurationError{Section: proxy, Reason: "section is missing"}
		}
		// management credentials of [main] apply unless the section overrides them
		cfg := pdiskbackend.BackendConfig{
			MgtUserName:       c.Main.MgtUserName,
			MgtUserPrivateKey: c.Main.MgtUserPrivateKey,
			SSHPort:           c.Main.SSHPort,
		}
		if err := decodeSection(section, &cfg); err != nil {
			return nil, &pdiskbackend.ConfigurationError{Section: proxy, Reason: err.Error()}
		}
		if err := validateProxy(proxy, cfg); err != nil {
			return nil, err
		}
		c.Proxies[proxy] = cfg
	}
	return c, nil
}

func decodeSection(section *ini.Section, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       decodeHook,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(section.KeysHash())
}

// DefaultProxy is the first entry of iscsi_proxies.
func (c *Config) DefaultProxy() string {
	return c.Main.ISCSIProxies[0]
}

// Backend builds the backend of proxy, the default proxy when empty.
func (c *Config) Backend(proxy string) (pdiskbackend.Backend, error) {
	if proxy == "" {
		proxy = c.DefaultProxy()
	}
	cfg, ok := c.Proxies[proxy]
	if !ok {
		return nil, &pdiskbackend.ConfigurationError{
			Section: pdisk.MainSection,
			Key:     "iscsi_proxies",
			Reason:  fmt.Sprintf("proxy %q is not configured, configured proxies: %s", proxy, strings.Join(c.Main.ISCSIProxies, ", ")),
		}
	}
	return pdiskbackend.NewBackend(proxy, cfg)
}

// Logging returns the logger options of the [main] section.
func (c *Config) Logging() log.Options {
	return log.Options{
		Direction: c.Main.LogDirection,
		File:      c.Main.LogFile,
		Level:     c.Main.LogLevel,
		Tag:       pdisk.ProgramName,
	}
}

// Watch calls onChange with every valid new version of the file. Invalid
// changes are logged and ignored.
func (c *Config) Watch(onChange func(*Config)) {
	v := viper.New()
	v.SetConfigFile(c.Path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		log.Warnf("Failed to read %s before watching: %s", c.Path, err)
	}

	var mu sync.Mutex
	v.OnConfigChange(func(event fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()
		log.Infof("Detect config change: %s", event.String())
		next, err := Load(c.Path)
		if err != nil {
			log.Errorf("Failed to load the configuration: %s, ignore this change", err)
			return
		}
		onChange(next)
	})
	v.WatchConfig()
}

var (
	proxyNameRegexp    = regexp.MustCompile(`^[A-Za-z0-9]([-A-Za-z0-9_.]*[A-Za-z0-9])?$`)
	logDirectionRegexp = regexp.MustCompile(`(?i)^(console|syslog|file)?$`)
	logLevelRegexp     = regexp.MustCompile(`(?i)^(debug|info|warn|error)?$`)
)

func validateMain(m Main) error {
	if len(m.ISCSIProxies) == 0 {
		return &pdiskbackend.ConfigurationError{Section: pdisk.MainSection, Key: "iscsi_proxies", Reason: "at least one proxy is required"}
	}
	for _, proxy := range m.ISCSIProxies {
		if !proxyNameRegexp.MatchString(proxy) {
			return &pdiskbackend.ConfigurationError{Section: pdisk.MainSection, Key: "iscsi_proxies",
				Reason: fmt.Sprintf("proxy name should be a host name: %s", proxy)}
		}
	}
	if !logDirectionRegexp.MatchString(m.LogDirection) {
		return &pdiskbackend.ConfigurationError{Section: pdisk.MainSection, Key: "log_direction",
			Reason: fmt.Sprintf("must be console, syslog or file: %s", m.LogDirection)}
	}
	if !logLevelRegexp.MatchString(m.LogLevel) {
		return &pdiskbackend.ConfigurationError{Section: pdisk.MainSection, Key: "log_level",
			Reason: fmt.Sprintf("must be debug, info, warn or error: %s", m.LogLevel)}
	}
	if m.SSHPort < 0 || m.SSHPort > 65535 {
		return &pdiskbackend.ConfigurationError{Section: pdisk.MainSection, Key: "ssh_port", Reason: "out of range: " + strconv.Itoa(m.SSHPort)}
	}
	if m.CommandTimeout < 0 {
		return &pdiskbackend.ConfigurationError{Section: pdisk.MainSection, Key: "command_timeout", Reason: "must not be negative"}
	}
	return nil
}

func validateProxy(proxy string, cfg pdiskbackend.BackendConfig) error {
	if _, err := pdiskbackend.ParseBackendType(cfg.Type); err != nil {
		err.(*pdiskbackend.ConfigurationError).Section = proxy
		return err
	}
	for key, port := range map[string]int{"ssh_port": cfg.SSHPort, "iscsi_port": cfg.ISCSIPort} {
		if port < 0 || port > 65535 {
			return &pdiskbackend.ConfigurationError{Section: proxy, Key: key, Reason: "out of range: " + strconv.Itoa(port)}
		}
	}
	if cfg.MgtUserPrivateKey != "" && !utils.FileExists(cfg.MgtUserPrivateKey) {
		log.Warnf("private key %s of proxy %s does not exist", cfg.MgtUserPrivateKey, proxy)
	}
	return nil
}

// secondsToDurationHookFunc reads plain numbers as seconds.
func secondsToDurationHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(data.(string)))
		if err != nil {
			return data, nil
		}
		return time.Duration(n) * time.Second, nil
	}
}
