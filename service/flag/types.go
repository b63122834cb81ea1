package flag

import (
	"io"

	"github.com/elC0mpa/aws-teardown/model"
)

type service struct {
	out io.Writer
}

type FlagService interface {
	GetParsedFlags(args []string) (model.Flags, error)
}
