//go:build !windows

package aac

import "github.com/nvstream/coreenc/pkg/encerr"

// mftUnavailable reports transform unavailability on platforms without a
// Media Foundation AAC-LC encoder binding.
type mftUnavailable struct{}

var _ Transform = (*mftUnavailable)(nil)

// NewDriver returns a Transform stub that always reports the encoder as
// unavailable.
func NewDriver() Transform {
	return &mftUnavailable{}
}

func (*mftUnavailable) Initialize(int, int, int) error {
	return encerr.ErrAacEncoderNotFound
}

func (*mftUnavailable) ProcessInput([]int16, int64) (InputStatus, error) {
	return 0, encerr.ErrAacEncoderNotFound
}

func (*mftUnavailable) ProcessOutput() ([]byte, OutputStatus, error) {
	return nil, OutputNeedMoreInput, encerr.ErrAacEncoderNotFound
}

func (*mftUnavailable) Drain() error { return nil }

func (*mftUnavailable) Close() error { return nil }
