package config

import (
	"log"

	"github.com/spf13/viper"
)

// Fallback sync endpoint used when no config file or environment override is
// present, so a fresh checkout still syncs against the shared sheet.
const defaultScriptURL = "https://script.google.com/macros/s/AKfycbxLoanbookSharedSheetEndpoint/exec"

// Load sets up viper with defaults and reads the optional config file.
func Load() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("Cloud.ScriptURL", defaultScriptURL)
	viper.SetDefault("Store.Path", "loanbook.db")
	viper.SetDefault("Server.Port", "8080")

	viper.SetEnvPrefix("LOANBOOK")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults")
		} else {
			log.Fatalf("Fatal error reading config file: %v", err)
		}
	}
}

// GetString gets a string value from the configuration
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt gets an integer value from the configuration
func GetInt(key string) int {
	return viper.GetInt(key)
}
