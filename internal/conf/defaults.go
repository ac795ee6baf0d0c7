// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "Scribe")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/scribe.log")
	viper.SetDefault("main.log.maxsize", 1048576)

	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.host", "0.0.0.0")
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.baseurl", "")
	viper.SetDefault("webserver.log.enabled", true)
	viper.SetDefault("webserver.log.path", "logs/web.log")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "scribe.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "scribe")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "scribe")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("security.sessionsecret", "")
	viper.SetDefault("security.sessionmaxage", 86400*7)
	viper.SetDefault("security.bcryptcost", 12)
	viper.SetDefault("security.allowsignup", true)
	viper.SetDefault("security.redirecttohttps", false)

	viper.SetDefault("summary.enabled", true)
	viper.SetDefault("summary.endpoint", "https://api.openai.com/v1/chat/completions")
	viper.SetDefault("summary.apikey", "")
	viper.SetDefault("summary.model", "gpt-3.5-turbo")
	viper.SetDefault("summary.maxtokens", 150)
	viper.SetDefault("summary.systemprompt",
		"You are an assistant that summarizes speech text into concise summaries.")

	viper.SetDefault("capture.language", "en-US")
	viper.SetDefault("capture.maxtranscriptbytes", 1048576)
}
