package core

import (
	"fmt"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env            string `yaml:"env" env:"ENV" env-default:"local"`
	TelegramApiKey string `yaml:"telegram_api_key" env:"TELEGRAM_API_KEY" env-default:""`
	GeminiApiKey   string `yaml:"gemini_api_key" env:"GEMINI_API_KEY" env-default:""`
	Username       string `yaml:"username" env-default:""`
	AdminId        int64  `yaml:"admin_id" env-default:"0"`
	TextModel      string `yaml:"text_model" env-default:"gemini-2.5-flash"`
	ImageModel     string `yaml:"image_model" env-default:"gemini-2.5-flash-image"`
	VariantCount   int    `yaml:"variant_count" env-default:"3"`
	RefinePrompts  bool   `yaml:"refine_prompts" env-default:"true"`
	// MaxTurns bounds stored dialogue history; 0 keeps everything.
	MaxTurns int `yaml:"max_turns" env-default:"0"`
	Settings struct {
		Enabled bool   `yaml:"enabled" env-default:"false"`
		Url     string `yaml:"url" env-default:""`
		Token   string `yaml:"token" env-default:""`
	} `yaml:"settings"`
	Mongo struct {
		Enabled  bool   `yaml:"enabled" env-default:"false"`
		Host     string `yaml:"host" env-default:"127.0.0.1"`
		Port     string `yaml:"port" env-default:"27017"`
		User     string `yaml:"user" env-default:"admin"`
		Password string `yaml:"password" env-default:"pass"`
		Database string `yaml:"database" env-default:""`
	} `yaml:"mongo"`
}

var instance *Config
var once sync.Once

func GetConfig(path string) (*Config, error) {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("config: %s; %s", err, desc)
			instance = nil
		}
	})
	return instance, err
}

func MustLoad(path string) *Config {
	conf, err := GetConfig(path)
	if err != nil {
		panic(err)
	}
	return conf
}
