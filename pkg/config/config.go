package config

import (
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

// Config holds the external feed endpoints. The zero value is not
// usable, start from DefaultConfig and overlay config.yaml on top.
type Config struct {
	CommunityRuleURLs []string `yaml:"community_rule_urls"`
	PulseAPIURL       string   `yaml:"pulse_api_url"`
	PulseMaxItems     int      `yaml:"pulse_max_items"`
	HashFeedURL       string   `yaml:"hash_feed_url"`
	HashBatchLimit    int      `yaml:"hash_batch_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		CommunityRuleURLs: []string{
			"https://raw.githubusercontent.com/Yara-Rules/rules/master/malware/MALW_Eicar.yar",
			"https://raw.githubusercontent.com/Yara-Rules/rules/master/malware/MALW_Mimispoofer.yar",
			"https://raw.githubusercontent.com/ReversingLabs/reversinglabs-yara-rules/develop/yara/trojan/Win32.Trojan.Zeus.yar",
		},
		PulseAPIURL:    "https://otx.alienvault.com/api/v1",
		PulseMaxItems:  5,
		HashFeedURL:    "https://mb-api.abuse.ch/api/v1/",
		HashBatchLimit: 20,
	}
}

// ParseConfig loads config.yaml from configPath over the defaults. An
// empty configPath returns the defaults unchanged.
func ParseConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if len(configPath) == 0 {
		return config, nil
	}

	data, err := os.ReadFile(path.Join(configPath, "config.yaml"))
	if err != nil {
		return config, err
	}

	err = yaml.Unmarshal(data, config)
	if err != nil {
		return config, err
	}

	return config, nil
}
