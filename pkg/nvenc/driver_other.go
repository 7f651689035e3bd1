//go:build !windows

package nvenc

import "github.com/nvstream/coreenc/pkg/encerr"

// nvencUnavailable reports driver unavailability on platforms without a
// DIRECTX-mode NVENC binding; the session is opened in DIRECTX mode, which
// this pipeline only implements for Windows.
type nvencUnavailable struct{}

var _ Session = (*nvencUnavailable)(nil)

// NewDriver returns a Session stub that always reports the driver as
// unavailable.
func NewDriver() Session {
	return &nvencUnavailable{}
}

func (*nvencUnavailable) Open(uintptr, InitParams) error {
	return encerr.ErrDriverUnavailable
}

func (*nvencUnavailable) AsyncDepth() int { return 0 }

func (*nvencUnavailable) RegisterSurface(uintptr, PixelFormat) (uintptr, error) {
	return 0, encerr.ErrDriverUnavailable
}

func (*nvencUnavailable) EnsureStagingSurface(int, int) (uintptr, error) {
	return 0, encerr.ErrDriverUnavailable
}

func (*nvencUnavailable) CopyToStaging(uintptr, uintptr) error {
	return encerr.ErrDriverUnavailable
}

func (*nvencUnavailable) EnsureNV12Surface(int, int) (uintptr, error) {
	return 0, encerr.ErrDriverUnavailable
}

func (*nvencUnavailable) BltToNV12(uintptr, uintptr) error {
	return encerr.ErrDriverUnavailable
}

func (*nvencUnavailable) EncodePicture(int, Picture) (SubmitResult, error) {
	return 0, encerr.ErrDriverUnavailable
}

func (*nvencUnavailable) ConsumeSlot(int) ([]byte, error) {
	return nil, encerr.ErrDriverUnavailable
}

func (*nvencUnavailable) Close() error { return nil }
