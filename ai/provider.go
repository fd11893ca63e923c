package ai

import (
	"errors"
	"io"
)

type visionOverride struct {
	Provider
	vision VisionModel
}

// WithVision returns a provider that serves vision from the given model and
// everything else from p. Close also closes the model if it is an io.Closer.
func WithVision(p Provider, vision VisionModel) Provider {
	if vision == nil {
		return p
	}
	return &visionOverride{Provider: p, vision: vision}
}

func (v *visionOverride) Vision() VisionModel {
	return v.vision
}

func (v *visionOverride) Close() error {
	var errs []error
	if c, ok := v.vision.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, v.Provider.Close())
	return errors.Join(errs...)
}
