package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Runtime is the process level configuration. Command line flags take
// precedence over it.
type Runtime struct {
	Workers  int    `env:"AZISIM_WORKERS" envDefault:"0"`
	LogLevel string `env:"AZISIM_LOG_LEVEL" envDefault:"info"`
	Data     string `env:"AZISIM_DATA" envDefault:"azisim.db"`
}

// LoadRuntime reads the environment after loading the optional dotenv files.
// Variables already set in the environment win over the files.
func LoadRuntime(files ...string) (Runtime, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Runtime{}, err
		}
	}

	var rt Runtime
	if err := env.Parse(&rt); err != nil {
		return Runtime{}, err
	}
	return rt, nil
}
