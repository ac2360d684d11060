package worker

import (
	"os"

	"gopkg.in/yaml.v3"

	"reviewhook/internal"
)

type workerAppConfig struct {
	Watermill SubscriberConfig `yaml:"watermill"`
}

// LoadSubscriberConfig reads the subscriber section from the shared config
// file.
func LoadSubscriberConfig(path string) (SubscriberConfig, error) {
	var cfg workerAppConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg.Watermill, err
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg.Watermill, err
	}
	applySubscriberDefaults(&cfg.Watermill)
	return cfg.Watermill, nil
}

// LoadTopicsFromConfig collects every topic the dispatch rules can emit,
// plus the default trigger topic, so the worker subscribes to all of them.
func LoadTopicsFromConfig(path string) ([]string, error) {
	cfg, err := internal.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	topics := make([]string, 0, len(cfg.Rules)+1)
	seen := make(map[string]struct{}, len(cfg.Rules)+1)
	add := func(topic string) {
		if topic == "" {
			return
		}
		if _, ok := seen[topic]; ok {
			return
		}
		seen[topic] = struct{}{}
		topics = append(topics, topic)
	}

	for _, rule := range cfg.Rules {
		for _, topic := range rule.Emit {
			add(topic)
		}
	}
	add(cfg.Review.DefaultTopic)
	return topics, nil
}

func applySubscriberDefaults(cfg *SubscriberConfig) {
	if cfg.Driver == "" && len(cfg.Drivers) == 0 {
		cfg.Driver = "gochannel"
	}
	if cfg.GoChannel.OutputChannelBuffer == 0 {
		cfg.GoChannel.OutputChannelBuffer = 64
	}
	if cfg.NATS.ClientIDSuffix == "" {
		cfg.NATS.ClientIDSuffix = "-worker"
	}
}
