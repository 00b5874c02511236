package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/BurntSushi/toml"

	"ergo.services/actor/gen"
)

// Config can be loaded from a TOML file:
//
//	[node]
//	host = "127.0.0.1"
//	port = 8080
//	workers = 4
//	log_level = "info"
//
//	[bench]
//	mode = "throughput"
//	pairs = 100
//	messages = 1000
type Config struct {
	Node  NodeConfig  `toml:"node"`
	Bench BenchConfig `toml:"bench"`
}

type NodeConfig struct {
	Host     string `toml:"host"`
	Port     uint16 `toml:"port"`
	Workers  int    `toml:"workers"`
	LogLevel string `toml:"log_level"`
	Colors   bool   `toml:"colors"`
}

type BenchConfig struct {
	// Mode is one of: throughput, links, dispatch, server, client
	Mode     string `toml:"mode"`
	Pairs    int    `toml:"pairs"`
	Messages int    `toml:"messages"`
	// Peer is the host:port of the node running in the server mode
	Peer string `toml:"peer"`
}

func defaultConfig() Config {
	return Config{
		Node: NodeConfig{
			Host:     "127.0.0.1",
			LogLevel: "info",
		},
		Bench: BenchConfig{
			Mode:     "throughput",
			Pairs:    10,
			Messages: 10000,
		},
	}
}

func loadConfig(path string, config *Config) error {
	if _, err := toml.DecodeFile(path, config); err != nil {
		return fmt.Errorf("unable to load config %q: %w", path, err)
	}
	return nil
}

func (c Config) nodeOptions() (gen.NodeOptions, error) {
	level, err := gen.ParseLogLevel(c.Node.LogLevel)
	if err != nil {
		return gen.NodeOptions{}, err
	}

	options := gen.NodeOptions{
		Workers: c.Node.Workers,
	}
	options.Network.Host = c.Node.Host
	options.Network.Port = c.Node.Port
	options.Log.Level = level
	options.Log.DefaultLogger.EnableColors = c.Node.Colors
	options.Log.DefaultLogger.TimeFormat = "15:04:05.000"
	return options, nil
}

func parseAddress(hostPort string) (gen.Address, error) {
	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return gen.Address{}, err
	}
	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return gen.Address{}, fmt.Errorf("incorrect port %q: %w", port, err)
	}
	return gen.Address{Host: host, Port: uint16(p)}, nil
}
