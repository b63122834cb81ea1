package settings

import (
	"github.com/elC0mpa/aws-teardown/model"
	"github.com/go-playground/validator/v10"
)

type service struct {
	validate *validator.Validate
}

type SettingsService interface {
	Load(path string) (model.Config, error)
	Parse(data []byte) (model.Config, error)
}

// EnvDefaults are the flag defaults taken from the environment.
type EnvDefaults struct {
	ConfigPath string
	Region     string
	Profile    string
	LogLevel   string
}
