package api

import (
	"regexp"

	v "github.com/go-ozzo/ozzo-validation/v4"
)

var frameKeyPattern = regexp.MustCompile(`^\d{8}_\d{6}$`)

type FrameKeyParams struct {
	Key string `params:"key"`
}

func (p FrameKeyParams) Validate() error {
	return v.ValidateStruct(&p,
		v.Field(&p.Key, v.Required, v.Match(frameKeyPattern).Error("must look like 20060102_150405")),
	)
}
