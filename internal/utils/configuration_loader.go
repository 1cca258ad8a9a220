package utils

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	environmentKeySeparatorConstant            = "_"
	configurationKeySeparatorConstant          = "."
	listValueSeparatorConstant                 = ","
	embeddedConfigurationErrorTemplateConstant = "unable to read embedded configuration: %w"
	configurationFileErrorTemplateConstant     = "unable to read configuration file %s: %w"
	configurationDecodeErrorTemplateConstant   = "unable to decode configuration: %w"
)

// LoadedConfigurationMetadata reports where configuration values came from.
type LoadedConfigurationMetadata struct {
	ConfigFileUsed string
}

// ConfigurationLoader layers embedded defaults, configuration files, and environment variables through viper.
type ConfigurationLoader struct {
	configurationName         string
	configurationType         string
	environmentPrefix         string
	searchPaths               []string
	embeddedConfiguration     []byte
	embeddedConfigurationType string
}

// NewConfigurationLoader constructs a ConfigurationLoader searching the provided directories in order.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	return &ConfigurationLoader{
		configurationName: configurationName,
		configurationType: configurationType,
		environmentPrefix: environmentPrefix,
		searchPaths:       append([]string(nil), searchPaths...),
	}
}

// SetEmbeddedConfiguration registers configuration content merged beneath any configuration file.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(content []byte, configurationType string) {
	loader.embeddedConfiguration = append([]byte(nil), content...)
	loader.embeddedConfigurationType = configurationType
}

// LoadConfiguration decodes the layered configuration into target. An explicit configuration file
// path replaces the search paths and must exist.
func (loader *ConfigurationLoader) LoadConfiguration(configurationFilePath string, defaultValues map[string]any, target any) (LoadedConfigurationMetadata, error) {
	configurationReader := viper.New()
	for key, value := range defaultValues {
		configurationReader.SetDefault(key, value)
	}

	if len(loader.embeddedConfiguration) > 0 {
		embeddedType := loader.embeddedConfigurationType
		if len(embeddedType) == 0 {
			embeddedType = loader.configurationType
		}
		configurationReader.SetConfigType(embeddedType)
		if mergeError := configurationReader.MergeConfig(bytes.NewReader(loader.embeddedConfiguration)); mergeError != nil {
			return LoadedConfigurationMetadata{}, fmt.Errorf(embeddedConfigurationErrorTemplateConstant, mergeError)
		}
	}

	trimmedFilePath := strings.TrimSpace(configurationFilePath)
	if len(trimmedFilePath) > 0 {
		configurationReader.SetConfigFile(trimmedFilePath)
		if mergeError := configurationReader.MergeInConfig(); mergeError != nil {
			return LoadedConfigurationMetadata{}, fmt.Errorf(configurationFileErrorTemplateConstant, trimmedFilePath, mergeError)
		}
	} else {
		configurationReader.SetConfigName(loader.configurationName)
		configurationReader.SetConfigType(loader.configurationType)
		for _, searchPath := range loader.searchPaths {
			configurationReader.AddConfigPath(searchPath)
		}
		if mergeError := configurationReader.MergeInConfig(); mergeError != nil {
			var notFoundError viper.ConfigFileNotFoundError
			if !errors.As(mergeError, &notFoundError) {
				return LoadedConfigurationMetadata{}, fmt.Errorf(configurationFileErrorTemplateConstant, loader.configurationName, mergeError)
			}
		}
	}

	if len(loader.environmentPrefix) > 0 {
		configurationReader.SetEnvPrefix(loader.environmentPrefix)
	}
	configurationReader.SetEnvKeyReplacer(strings.NewReplacer(configurationKeySeparatorConstant, environmentKeySeparatorConstant))
	configurationReader.AutomaticEnv()

	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(listValueSeparatorConstant),
	))
	if decodeError := configurationReader.Unmarshal(target, decodeHook); decodeError != nil {
		return LoadedConfigurationMetadata{}, fmt.Errorf(configurationDecodeErrorTemplateConstant, decodeError)
	}

	return LoadedConfigurationMetadata{ConfigFileUsed: configurationReader.ConfigFileUsed()}, nil
}
