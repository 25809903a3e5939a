package actors

import (
	"os"

	"github.com/spf13/viper"
	"forgestr/engine/library"
)

// InitConfig sets up our Viper config object
func InitConfig(config *viper.Viper) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		library.LogCLI(err.Error(), 0)
	}
	config.SetDefault("rootDir", homeDir+"/.config/forgestr/")
	config.SetConfigType("yaml")
	config.SetConfigFile(config.GetString("rootDir") + "config.yaml")
	err = config.ReadInConfig()
	if err != nil {
		library.LogCLI(err.Error(), 4)
	}
	config.SetDefault("accountsFile", config.GetString("rootDir")+"accounts.json")
	config.SetDefault("logLevel", 4)
	config.SetDefault("relays", []string{"wss://relay.damus.io", "wss://nos.lol"})
	config.SetDefault("fetchTimeout", "5s")
	config.SetDefault("publishTimeout", "10s")
	config.SetDefault("connectionWarmup", "500ms")
	config.SetDefault("eventPacing", "200ms")
	config.SetDefault("retryAttempts", 5)
	config.SetDefault("retryBase", "1s")
	config.SetDefault("retryMultiplier", 2)
	config.SetDefault("retryCap", "16s")
	// Create our working directory and config file if not exist
	initRootDir(config)
	library.Touch(config.GetString("rootDir") + "config.yaml")
	err = config.WriteConfig()
	if err != nil {
		library.LogCLI(err.Error(), 0)
	}
}

func initRootDir(conf *viper.Viper) {
	_, err := os.Stat(conf.GetString("rootDir"))
	if os.IsNotExist(err) {
		err = os.MkdirAll(conf.GetString("rootDir"), 0755)
		if err != nil {
			library.LogCLI(err, 0)
		}
	}
}

var conf *viper.Viper

func MakeOrGetConfig() *viper.Viper {
	if conf == nil {
		conf = viper.New()
		InitConfig(conf)
	}
	return conf
}

func SetConfig(config *viper.Viper) {
	conf = config
}
