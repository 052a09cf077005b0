package main

import (
	"flag"
	"fmt"
	"os"

	"inputviz/internal/config"
)

func cmdConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	asYAML := fs.Bool("yaml", false, "print as YAML")
	asJSON := fs.Bool("json", false, "print as JSON")
	initFile := fs.Bool("init", false, "write the defaults to the config path if it does not exist")
	fs.Parse(args)

	var (
		cfg *config.Config
		err error
	)
	path := config.ResolvePath(*configPath)
	if *initFile {
		var created bool
		cfg, created, err = config.LoadOrCreate(path)
		if err == nil && created {
			fmt.Fprintf(os.Stderr, "wrote %s\n", path)
		}
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return err
	}

	format := "toml"
	switch {
	case *asYAML:
		format = "yaml"
	case *asJSON:
		format = "json"
	}
	data, err := config.Encode(cfg, format)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
