package config

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/kelseyhightower/envconfig"

	"github.com/libcirc/circulation-service/internal/notify"
	"github.com/libcirc/circulation-service/internal/scheduler"
	"github.com/libcirc/circulation-service/internal/server"
	"github.com/libcirc/circulation-service/internal/service"
	"github.com/libcirc/circulation-service/pkg/kafka"
	"github.com/libcirc/circulation-service/pkg/logger"
	"github.com/libcirc/circulation-service/pkg/postgres"
)

type Config struct {
	Server      server.Config `yaml:"server"`
	Database    postgres.Config
	Kafka       kafka.Config
	SMTP        notify.SMTPConfig
	Circulation service.Config
	Scheduler   scheduler.Config
	Log         logger.Log `yaml:"log"`
}

var (
	once sync.Once
	cfg  Config
)

// NewConfig reads config from environment.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		for _, op := range ops {
			op(&config)
		}
		if err := envconfig.Process("", &config); err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = config
		printConfig(cfg)
	})

	return &cfg
}

func printConfig(cfg Config) {
	jscfg, _ := json.MarshalIndent(cfg, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}
