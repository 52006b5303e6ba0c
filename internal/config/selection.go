package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/viper"

	"github.com/veranemoloko/vision-downloader/internal/domain"
	errpkg "github.com/veranemoloko/vision-downloader/internal/errors"
)

// SelectionProfile is a reusable selection stored in a YAML file.
//
//	market: um
//	data_types: [klines]
//	symbols: [BTCUSDT]
//	intervals: [1h]
//	granularity: monthly
//	years: [2024]
//	months: [1, 2]
//	options:
//	  verify_checksum: true
type SelectionProfile struct {
	domain.Selection `mapstructure:",squash"`
	Options          domain.RunOptions `mapstructure:"options"`
}

// LoadSelection reads a selection profile from path.
func LoadSelection(path string) (*SelectionProfile, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errpkg.ErrConfigNotFound, path)
		}
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading selection file failed (%s): %w", path, err)
	}

	var profile SelectionProfile
	if err := v.Unmarshal(&profile); err != nil {
		return nil, fmt.Errorf("parsing selection file failed: %w", err)
	}
	return &profile, nil
}
