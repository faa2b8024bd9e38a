package config

type WebConfig struct {
	Listen string
}

func NewWebConfig(listen string) WebConfig {
	if listen == "" {
		if v := GetenvStr("WEB_LISTEN"); v != "" {
			listen = v
		} else {
			listen = ":8080"
		}
	}
	return WebConfig{Listen: listen}
}
