/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"flag"
	"fmt"
	golog "log"

	"github.com/acronis/go-appkit/config"
	"github.com/acronis/go-appkit/log"
	"github.com/acronis/go-appkit/service"

	"github.com/cardkit/cardkit/internal/app"
)

func main() {
	if err := runApp(); err != nil {
		golog.Fatal(err)
	}
}

func runApp() error {
	cfgPath := flag.String("config", "config.yml", "path to the configuration file")
	flag.Parse()

	cfg, err := loadAppConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, loggerClose := log.NewLogger(cfg.Log)
	defer loggerClose()

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init application: %w", err)
	}

	return service.New(logger, application).Start()
}

func loadAppConfig(path string) (*app.Config, error) {
	cfgLoader := config.NewDefaultLoader("cardkit")
	cfg := app.NewConfig()
	err := cfgLoader.LoadFromFile(path, config.DataTypeYAML, cfg)
	return cfg, err
}
