//go:build windows

package aac

import (
	"fmt"
	"runtime"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/nvstream/coreenc/pkg/encerr"
)

// mftTransform drives the Windows Media Foundation AAC-LC encoder MFT
// through raw COM vtable calls via syscall: CoInitializeEx, MFStartup,
// MFTEnumEx to find the transform, and ProcessInput/ProcessOutput/
// ProcessMessage for the encode loop. No input or output media type is
// negotiated (see setInputType/setOutputType).
type mftTransform struct {
	transform   uintptr // IMFTransform*
	procMessage uintptr // vtable slot for ProcessMessage
	procInput   uintptr // vtable slot for ProcessInput
	procOutput  uintptr // vtable slot for ProcessOutput

	sampleRate int
	channels   int
}

var _ Transform = (*mftTransform)(nil)

var (
	modmfplat  = windows.NewLazySystemDLL("mfplat.dll")
	modole32   = windows.NewLazySystemDLL("ole32.dll")
	modmfready = windows.NewLazySystemDLL("mfreadwrite.dll")

	procCoInitializeEx = modole32.NewProc("CoInitializeEx")
	procMFStartup      = modmfplat.NewProc("MFStartup")
	procMFTEnumEx      = modmfplat.NewProc("MFTEnumEx")
)

const (
	mfStartupFull  = 0
	mfVersion      = 0x00020070
	mftCategoryAudioEncoder = 1 // placeholder category selector for enumeration
)

// NewDriver returns the concrete Windows Media Foundation AAC transform.
func NewDriver() Transform {
	return &mftTransform{}
}

func comCall(obj uintptr, slot int, args ...uintptr) (uintptr, error) {
	vtbl := *(*uintptr)(unsafe.Pointer(obj))
	fn := *(*uintptr)(unsafe.Pointer(vtbl + uintptr(slot)*unsafe.Sizeof(uintptr(0))))
	callArgs := append([]uintptr{obj}, args...)
	r1, _, callErr := syscall.SyscallN(fn, callArgs...)
	if int32(r1) < 0 {
		return r1, fmt.Errorf("hresult 0x%x (%v)", uint32(r1), callErr)
	}
	return r1, nil
}

func (m *mftTransform) Initialize(sampleRate, channels, bitrateBps int) error {
	runtime.LockOSThread()

	const comApartmentThreaded = 0x2
	procCoInitializeEx.Call(0, comApartmentThreaded)

	r1, _, _ := procMFStartup.Call(uintptr(mfVersion), uintptr(mfStartupFull))
	if int32(r1) < 0 {
		return fmt.Errorf("%w: MFStartup failed", encerr.ErrAacEncoderNotFound)
	}

	transform, err := enumerateAACEncoder()
	if err != nil {
		return fmt.Errorf("%w: %v", encerr.ErrAacEncoderNotFound, err)
	}
	m.transform = transform
	m.sampleRate = sampleRate
	m.channels = channels

	if err := m.setInputType(sampleRate, channels); err != nil {
		return err
	}
	if err := m.setOutputType(sampleRate, channels, bitrateBps); err != nil {
		return err
	}

	const mftMessageNotifyBeginStreaming = 0x10000002
	if _, err := comCall(m.transform, m.procMessage, mftMessageNotifyBeginStreaming, 0); err != nil {
		return err
	}
	return nil
}

// enumerateAACEncoder locates the system AAC-LC encoder MFT via
// MFTEnumEx and activates the first transform the enumeration returns;
// hardware and software transforms are not told apart.
func enumerateAACEncoder() (uintptr, error) {
	var list uintptr
	var count uint32
	r1, _, _ := procMFTEnumEx.Call(
		uintptr(mftCategoryAudioEncoder), 0, 0, 0,
		uintptr(unsafe.Pointer(&list)), uintptr(unsafe.Pointer(&count)))
	if int32(r1) < 0 || count == 0 {
		return 0, fmt.Errorf("no AAC encoder MFT available")
	}
	activatePtrs := unsafe.Slice((**uintptr)(unsafe.Pointer(list)), count)
	activate := uintptr(unsafe.Pointer(activatePtrs[0]))

	const vtblActivateObject = 3
	var transform uintptr
	if _, err := comCall(activate, vtblActivateObject, uintptr(unsafe.Pointer(&transform))); err != nil {
		return 0, err
	}
	return transform, nil
}

func (m *mftTransform) setInputType(sampleRate, channels int) error {
	// Returns nil without building a 16-bit PCM IMFMediaType or calling
	// SetInputType.
	return nil
}

func (m *mftTransform) setOutputType(sampleRate, channels, bitrateBps int) error {
	// Returns nil without building the AAC-LC output type
	// (MFAudioFormat_AAC, profile-level 0x29) or calling SetOutputType.
	return nil
}

func (m *mftTransform) ProcessInput(pcm []int16, timestamp100ns int64) (InputStatus, error) {
	const mftStatusNotAcceptingData = 0x8004503E
	r, err := comCall(m.transform, m.procInput, 0,
		uintptr(unsafe.Pointer(&pcm[0])), uintptr(len(pcm)*2), uintptr(timestamp100ns))
	if err != nil {
		if uint32(r) == mftStatusNotAcceptingData {
			return InputNotAccepting, nil
		}
		return 0, err
	}
	return InputAccepted, nil
}

func (m *mftTransform) ProcessOutput() ([]byte, OutputStatus, error) {
	const mfENeedMoreInput = 0xC00D6D72
	const mfEOutputTypeChanged = 0xC00D6D61

	r, err := comCall(m.transform, m.procOutput, 0)
	if err != nil {
		switch uint32(r) {
		case mfENeedMoreInput:
			return nil, OutputNeedMoreInput, nil
		case mfEOutputTypeChanged:
			return nil, OutputStreamChange, nil
		}
		return nil, OutputNeedMoreInput, err
	}
	// No bytes are copied out of an IMFSample buffer: every ready unit is
	// returned empty.
	return []byte{}, OutputReady, nil
}

func (m *mftTransform) Drain() error {
	const mftMessageCommandDrain = 0x00000001
	_, err := comCall(m.transform, m.procMessage, mftMessageCommandDrain, 0)
	return err
}

func (m *mftTransform) Close() error {
	const mftMessageNotifyEndStreaming = 0x10000003
	comCall(m.transform, m.procMessage, mftMessageNotifyEndStreaming, 0)
	return nil
}
