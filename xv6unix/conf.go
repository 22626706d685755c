// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xv6unix

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// A Config sets the machine parameters for a System.
// The zero Config is not valid; start from DefaultConfig.
type Config struct {
	NCPU   int  `yaml:"ncpu"`   // simulated CPUs (scheduler goroutines)
	TickMS int  `yaml:"tickms"` // clock tick interval, in milliseconds
	Echo   bool `yaml:"echo"`   // echo console input
}

// DefaultConfig returns the configuration used when NewSystem
// is given a nil *Config.
func DefaultConfig() *Config {
	return &Config{
		NCPU:   4,
		TickMS: 10,
		Echo:   true,
	}
}

// ReadConfig reads a YAML configuration file.
// Fields missing from the file keep their DefaultConfig values.
func ReadConfig(path string) (*Config, error) {
	conf := DefaultConfig()
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "config")
	}
	defer file.Close()
	d := yaml.NewDecoder(file)
	if err := d.Decode(conf); err != nil {
		return nil, errors.Wrap(err, "config")
	}
	if err := conf.check(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) check() error {
	if c.NCPU < 1 || c.NCPU > NCPU {
		return errors.Errorf("config: ncpu %d out of range 1..%d", c.NCPU, NCPU)
	}
	if c.TickMS < 1 {
		return errors.Errorf("config: tickms %d out of range", c.TickMS)
	}
	return nil
}

func (c *Config) tick() time.Duration {
	return time.Duration(c.TickMS) * time.Millisecond
}
