/*
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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"ESCROW_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"ESCROW_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"ESCROW_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"ESCROW_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"ESCROW_REDIS_DNS"`
}

// GatewayConfig points at the payment processor API. The core talks to it
// through the gateway adapter only.
type GatewayConfig struct {
	Endpoint   string `json:"endpoint" envconfig:"ESCROW_GATEWAY_ENDPOINT"`
	APIKey     string `json:"api_key" envconfig:"ESCROW_GATEWAY_API_KEY"`
	TimeoutSec int    `json:"timeout_sec" envconfig:"ESCROW_GATEWAY_TIMEOUT_SEC"`
}

func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSec) * time.Second
}

type QueueConfig struct {
	WebhookQueue     string `json:"webhook_queue" envconfig:"ESCROW_QUEUE_WEBHOOK"`
	AutoReleaseQueue string `json:"auto_release_queue" envconfig:"ESCROW_QUEUE_AUTO_RELEASE"`
	SweepIntervalSec int    `json:"sweep_interval_sec" envconfig:"ESCROW_SWEEP_INTERVAL_SEC"`
	MonitoringPort   string `json:"monitoring_port" envconfig:"ESCROW_QUEUE_MONITORING_PORT"`
}

// TimelineOverride lets a deployment replace the default deadline table for a
// category. Keys are category names, values the day counts.
type TimelineOverride struct {
	CompletionDeadlineDays int `json:"completion_deadline_days"`
	ReviewPeriodDays       int `json:"review_period_days"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"ESCROW_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"ESCROW_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"ESCROW_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName  string                      `json:"project_name" envconfig:"ESCROW_PROJECT_NAME"`
	Server       ServerConfig                `json:"server"`
	DataSource   DataSourceConfig            `json:"data_source"`
	Redis        RedisConfig                 `json:"redis"`
	Gateway      GatewayConfig               `json:"gateway"`
	Queue        QueueConfig                 `json:"queue"`
	Timeline     map[string]TimelineOverride `json:"timeline"`
	Notification Notification                `json:"notification"`
	RateLimit    RateLimitConfig             `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("escrow", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called escrow.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Escrow Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	if cnf.Gateway.Endpoint == "" {
		log.Println("Error: Gateway endpoint is empty. It's a required field.")
		return errors.New("payment gateway endpoint is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Gateway.Endpoint = strings.TrimSpace(cnf.Gateway.Endpoint)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Gateway.TimeoutSec == 0 {
		cnf.Gateway.TimeoutSec = 30
	}

	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "new:webhook"
	}
	if cnf.Queue.AutoReleaseQueue == "" {
		cnf.Queue.AutoReleaseQueue = "new:auto-release"
	}
	if cnf.Queue.SweepIntervalSec == 0 {
		cnf.Queue.SweepIntervalSec = 300
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5002"
	}

	for category, override := range cnf.Timeline {
		if override.CompletionDeadlineDays <= 0 || override.ReviewPeriodDays <= 0 {
			log.Printf("Warning: Ignoring timeline override for %q: day counts must be positive", category)
			delete(cnf.Timeline, category)
		}
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
