package env

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const DefaultEnvFile = ".env"

// InitConfig fills config from the process environment, after loading DefaultEnvFile if present.
func InitConfig(config any) error {
	return InitConfigFrom(config, DefaultEnvFile)
}

// InitConfigFrom loads the given dotenv files (missing files are skipped) and then
// processes config with envconfig. Variables already set in the environment win.
func InitConfigFrom(config any, files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "failed to load %s", f)
		}
	}

	if err := envconfig.Process("", config); err != nil {
		return errors.Wrap(err, "failed to envconfig.Process")
	}

	return nil
}
