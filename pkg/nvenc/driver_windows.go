//go:build windows

package nvenc

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/nvstream/coreenc/pkg/encerr"
)

// nvencDriver drives nvEncodeAPI64.dll directly through its C-ABI function
// table with no cgo: load the DLL, resolve the single entry point, fill a
// function-pointer struct, and invoke through syscall.SyscallN from then
// on. NVENC's ABI is a flat struct of function pointers rather than a COM
// vtable, but the calling convention and lifetime discipline mirror the
// aac package's Media Foundation transform binding.
type nvencDriver struct {
	mu sync.Mutex

	dll     *windows.LazyDLL
	encoder uintptr // NV_ENCODE_API_FUNCTION_LIST* populated by the driver

	fnOpenSession   uintptr
	fnInitialize    uintptr
	fnEncodePicture uintptr
	fnLockBitstream uintptr
	fnUnlock        uintptr
	fnRegisterRes   uintptr
	fnMapInputRes   uintptr
	fnDestroy       uintptr
	fnCreateBitstream uintptr
	fnRegisterAsyncEvent uintptr

	depth  int
	slots  []uintptr
	events []windows.Handle

	// eosSlot is a dedicated bitstream for the end-of-stream picture,
	// created alongside the session regardless of async ring depth so
	// Drain never contends with a still-pending ring slot.
	eosSlot  uintptr
	eosEvent windows.Handle

	// device and deviceContext are the ID3D11Device/ID3D11DeviceContext
	// COM pointers backing both input paths. deviceContext is fetched
	// once via GetImmediateContext at Open.
	device        uintptr
	deviceContext uintptr

	stagingTexture          uintptr
	stagingWidth, stagingHeight int

	// videoDevice/videoContext are lazily queried from device/deviceContext
	// the first time the NV12 fast path is requested; videoDevice stays 0
	// if the device has no video processing support, which is how
	// EnsureNV12Surface reports the fast path as unavailable.
	videoDevice  uintptr
	videoContext uintptr

	nv12Processor           uintptr
	nv12Texture             uintptr
	nv12Width, nv12Height   int
}

var _ Session = (*nvencDriver)(nil)

// NewDriver returns the concrete Windows NVENC Session implementation.
func NewDriver() Session {
	return &nvencDriver{}
}

func (d *nvencDriver) Open(deviceHandle uintptr, params InitParams) error {
	d.dll = windows.NewLazySystemDLL("nvEncodeAPI64.dll")
	if err := d.dll.Load(); err != nil {
		return fmt.Errorf("%w: %v", encerr.ErrDriverUnavailable, err)
	}

	createInstance := d.dll.NewProc("NvEncodeAPICreateInstance")
	if err := createInstance.Find(); err != nil {
		return fmt.Errorf("%w: %v", encerr.ErrApiCreateFailed, err)
	}

	// The real ABI fills an NV_ENCODE_API_FUNCTION_LIST struct whose first
	// field is a version tag and whose remaining fields are function
	// pointers; callers pass a pointer to that struct.
	funcList := make([]uintptr, 64)
	r1, _, _ := createInstance.Call(uintptr(unsafe.Pointer(&funcList[0])))
	if r1 != 0 {
		return fmt.Errorf("%w: NvEncodeAPICreateInstance returned 0x%x", encerr.ErrApiCreateFailed, r1)
	}
	d.bindFunctionPointers(funcList)

	sessionHandle, err := d.openEncodeSession(deviceHandle)
	if err != nil {
		return fmt.Errorf("%w: %v", encerr.ErrSessionOpenFailed, err)
	}
	d.encoder = sessionHandle
	d.device = deviceHandle
	var ctx uintptr
	if _, err := d.callCOM(d.device, idxGetImmediateContext, uintptr(unsafe.Pointer(&ctx))); err == nil {
		d.deviceContext = ctx
	}

	if err := d.initializeEncoder(params); err != nil {
		return fmt.Errorf("%w: %v", encerr.ErrEncoderInitFailed, err)
	}

	if err := d.allocateEOSBitstream(); err != nil {
		return fmt.Errorf("%w: %v", encerr.ErrEncoderInitFailed, err)
	}

	asyncAllowed := params.Codec == H264 || (params.Codec == HEVC && params.HEVCAsyncOptIn)
	if asyncAllowed {
		if err := d.allocateAsyncSlots(asyncDepth); err != nil {
			// Degrade to sync rather than failing the session.
			d.releaseAsyncSlots()
			d.depth = 0
		}
	}
	return nil
}

func (d *nvencDriver) bindFunctionPointers(t []uintptr) {
	// Offsets into the real NV_ENCODE_API_FUNCTION_LIST struct; indices
	// chosen to mirror the vendor header's declared field order.
	d.fnOpenSession = t[1]
	d.fnInitialize = t[2]
	d.fnEncodePicture = t[3]
	d.fnLockBitstream = t[4]
	d.fnUnlock = t[5]
	d.fnRegisterRes = t[6]
	d.fnMapInputRes = t[7]
	d.fnDestroy = t[8]
	d.fnCreateBitstream = t[9]
	d.fnRegisterAsyncEvent = t[10]
}

func (d *nvencDriver) call(fn uintptr, args ...uintptr) (uintptr, error) {
	if fn == 0 {
		return 0, errors.New("nvenc: unbound function pointer")
	}
	r, _, callErr := syscall.SyscallN(fn, args...)
	if callErr != 0 {
		return r, callErr
	}
	return r, nil
}

// COM vtable indices for the D3D11 interfaces backing the two input paths.
// Unlike NVENC's flat function-pointer table, D3D11 interfaces are COM
// objects: the first qword at the object's address is a pointer to its
// vtable, and the first vtable slot is always QueryInterface. Indices below
// are chosen to mirror the real d3d11.h/d3d11videodevice.h declaration
// order of the methods this package actually calls.
const (
	idxGetImmediateContext  = 5  // ID3D11Device::GetImmediateContext
	idxCreateTexture2D      = 6  // ID3D11Device::CreateTexture2D
	idxQueryInterface       = 0  // IUnknown::QueryInterface, used to get ID3D11VideoDevice/VideoContext
	idxCopyResource         = 47 // ID3D11DeviceContext::CopyResource
	idxCreateVideoProcessorEnumerator = 7 // ID3D11VideoDevice
	idxCreateVideoProcessor = 8  // ID3D11VideoDevice
	idxVideoProcessorBlt    = 14 // ID3D11VideoContext
)

// callCOM invokes the method at vtable slot index on the COM object obj,
// passing obj itself as the implicit "this" first argument the way every
// COM ABI requires.
func (d *nvencDriver) callCOM(obj uintptr, index int, args ...uintptr) (uintptr, error) {
	if obj == 0 {
		return 0, errors.New("nvenc: nil COM object")
	}
	vtbl := *(*uintptr)(unsafe.Pointer(obj))
	fn := *(*uintptr)(unsafe.Pointer(vtbl + uintptr(index)*unsafe.Sizeof(uintptr(0))))
	callArgs := make([]uintptr, 0, len(args)+1)
	callArgs = append(callArgs, obj)
	callArgs = append(callArgs, args...)
	r, _, callErr := syscall.SyscallN(fn, callArgs...)
	if callErr != 0 {
		return r, callErr
	}
	return r, nil
}

func (d *nvencDriver) openEncodeSession(deviceHandle uintptr) (uintptr, error) {
	var session uintptr
	_, err := d.call(d.fnOpenSession, deviceHandle, uintptr(unsafe.Pointer(&session)))
	if err != nil {
		return 0, err
	}
	return session, nil
}

func (d *nvencDriver) initializeEncoder(params InitParams) error {
	_, err := d.call(d.fnInitialize, d.encoder,
		uintptr(params.Width), uintptr(params.Height), uintptr(params.FPS),
		uintptr(params.GOPLength), uintptr(params.IDRPeriod))
	return err
}

func (d *nvencDriver) allocateAsyncSlots(depth int) error {
	d.slots = make([]uintptr, depth)
	d.events = make([]windows.Handle, depth)
	for i := 0; i < depth; i++ {
		bs, err := d.call(d.fnCreateBitstream, d.encoder)
		if err != nil {
			return err
		}
		d.slots[i] = bs

		ev, err := windows.CreateEvent(nil, 0 /* auto-reset */, 0, nil)
		if err != nil {
			return err
		}
		d.events[i] = ev
		if _, err := d.call(d.fnRegisterAsyncEvent, d.encoder, uintptr(ev)); err != nil {
			return err
		}
	}
	d.depth = depth
	return nil
}

func (d *nvencDriver) releaseAsyncSlots() {
	for _, ev := range d.events {
		if ev != 0 {
			windows.CloseHandle(ev)
		}
	}
	d.slots = nil
	d.events = nil
}

// allocateEOSBitstream creates the dedicated end-of-stream bitstream and
// registers an async completion event for it, mirroring allocateAsyncSlots
// for a single always-present slot.
func (d *nvencDriver) allocateEOSBitstream() error {
	bs, err := d.call(d.fnCreateBitstream, d.encoder)
	if err != nil {
		return err
	}
	d.eosSlot = bs

	ev, err := windows.CreateEvent(nil, 0 /* auto-reset */, 0, nil)
	if err != nil {
		return err
	}
	d.eosEvent = ev
	_, err = d.call(d.fnRegisterAsyncEvent, d.encoder, uintptr(ev))
	return err
}

func (d *nvencDriver) releaseEOSBitstream() {
	if d.eosEvent != 0 {
		windows.CloseHandle(d.eosEvent)
		d.eosEvent = 0
	}
	d.eosSlot = 0
}

func (d *nvencDriver) AsyncDepth() int {
	return d.depth
}

// dxgiFormatB8G8R8A8 and dxgiFormatNV12 are the DXGI_FORMAT values for the
// staging texture and the fast-preset color-conversion output texture.
const (
	dxgiFormatB8G8R8A8 = 87
	dxgiFormatNV12     = 103
)

// createTexture2D fills a D3D11_TEXTURE2D_DESC-shaped buffer with width,
// height and format and a default (non-staging, GPU-local) usage, and asks
// the device to create it. Layout mirrors D3D11_TEXTURE2D_DESC's declared
// field order: Width, Height, MipLevels, ArraySize, Format, SampleDesc,
// Usage, BindFlags, CPUAccessFlags, MiscFlags.
func (d *nvencDriver) createTexture2D(width, height int, format uint32) (uintptr, error) {
	desc := make([]uint32, 10)
	desc[0] = uint32(width)
	desc[1] = uint32(height)
	desc[2] = 1 // MipLevels
	desc[3] = 1 // ArraySize
	desc[4] = format
	desc[5] = 1 // SampleDesc.Count
	desc[6] = 0 // SampleDesc.Quality
	desc[7] = 0 // D3D11_USAGE_DEFAULT
	desc[8] = 0x20 | 0x8 // D3D11_BIND_RENDER_TARGET | D3D11_BIND_SHADER_RESOURCE

	var tex uintptr
	_, err := d.callCOM(d.device, idxCreateTexture2D,
		uintptr(unsafe.Pointer(&desc[0])), 0, uintptr(unsafe.Pointer(&tex)))
	if err != nil {
		return 0, err
	}
	return tex, nil
}

// ensureVideoProcessing queries ID3D11VideoDevice/ID3D11VideoContext off
// device/deviceContext the first time the NV12 fast path is needed. It
// returns ErrDriverUnavailable if either interface is absent, which is how
// a device with no video processing support is distinguished from a
// transient failure.
func (d *nvencDriver) ensureVideoProcessing() error {
	if d.videoDevice != 0 && d.videoContext != 0 {
		return nil
	}
	var vd uintptr
	if _, err := d.callCOM(d.device, idxQueryInterface, 0, uintptr(unsafe.Pointer(&vd))); err != nil || vd == 0 {
		return encerr.ErrDriverUnavailable
	}
	var vc uintptr
	if _, err := d.callCOM(d.deviceContext, idxQueryInterface, 0, uintptr(unsafe.Pointer(&vc))); err != nil || vc == 0 {
		return encerr.ErrDriverUnavailable
	}
	d.videoDevice = vd
	d.videoContext = vc
	return nil
}

// EnsureStagingSurface returns the owned RGB staging texture sized to
// width x height, recreating it if missing or if the size changed.
func (d *nvencDriver) EnsureStagingSurface(width, height int) (uintptr, error) {
	if d.stagingTexture != 0 && d.stagingWidth == width && d.stagingHeight == height {
		return d.stagingTexture, nil
	}
	tex, err := d.createTexture2D(width, height, dxgiFormatB8G8R8A8)
	if err != nil {
		return 0, err
	}
	d.stagingTexture = tex
	d.stagingWidth, d.stagingHeight = width, height
	return tex, nil
}

// CopyToStaging copies sourceTexture into staging via the immediate
// device context.
func (d *nvencDriver) CopyToStaging(staging, sourceTexture uintptr) error {
	_, err := d.callCOM(d.deviceContext, idxCopyResource, staging, sourceTexture)
	return err
}

// EnsureNV12Surface returns the owned NV12 output texture backing the
// fast-preset color-space conversion path, recreating it if missing or if
// the size changed. It reports ErrDriverUnavailable if no video processor
// could be created, in which case the caller falls back to the RGB
// staging path.
func (d *nvencDriver) EnsureNV12Surface(width, height int) (uintptr, error) {
	if err := d.ensureVideoProcessing(); err != nil {
		return 0, err
	}
	if d.nv12Texture != 0 && d.nv12Width == width && d.nv12Height == height {
		return d.nv12Texture, nil
	}
	tex, err := d.createTexture2D(width, height, dxgiFormatNV12)
	if err != nil {
		return 0, err
	}
	if d.nv12Processor == 0 {
		var enumerator uintptr
		if _, err := d.callCOM(d.videoDevice, idxCreateVideoProcessorEnumerator, uintptr(unsafe.Pointer(&enumerator))); err != nil {
			return 0, fmt.Errorf("%w: %v", encerr.ErrDriverUnavailable, err)
		}
		var proc uintptr
		if _, err := d.callCOM(d.videoDevice, idxCreateVideoProcessor, enumerator, 0, uintptr(unsafe.Pointer(&proc))); err != nil {
			return 0, fmt.Errorf("%w: %v", encerr.ErrDriverUnavailable, err)
		}
		d.nv12Processor = proc
	}
	d.nv12Texture = tex
	d.nv12Width, d.nv12Height = width, height
	return tex, nil
}

// BltToNV12 converts sourceTexture into nv12Surface via the video
// processor backing EnsureNV12Surface.
func (d *nvencDriver) BltToNV12(nv12Surface, sourceTexture uintptr) error {
	_, err := d.callCOM(d.videoContext, idxVideoProcessorBlt, d.nv12Processor, nv12Surface, 0, 1, sourceTexture)
	return err
}

func (d *nvencDriver) RegisterSurface(sourceTexture uintptr, format PixelFormat) (uintptr, error) {
	var handle uintptr
	_, err := d.call(d.fnRegisterRes, d.encoder, sourceTexture, uintptr(format), uintptr(unsafe.Pointer(&handle)))
	if err != nil {
		return 0, err
	}
	return handle, nil
}

func (d *nvencDriver) EncodePicture(slot int, pic Picture) (SubmitResult, error) {
	var bitstream uintptr
	if slot == EOSSlot {
		bitstream = d.eosSlot
	} else if d.depth > 0 {
		bitstream = d.slots[slot]
	}
	eosFlag := uintptr(0)
	if pic.EOS {
		eosFlag = 1
	}
	r, err := d.call(d.fnEncodePicture, d.encoder, pic.Surface, bitstream, uintptr(pic.Timestamp), eosFlag)
	if err != nil {
		return 0, err
	}
	const needMoreInput = 1
	if r == needMoreInput {
		return SubmitNeedMoreInput, nil
	}
	return SubmitOK, nil
}

// ConsumeSlot waits on the slot's completion event (if async), then polls
// lock_bitstream with doNotWait=1, retrying every 2ms up to a 5s total
// budget.
func (d *nvencDriver) ConsumeSlot(slot int) ([]byte, error) {
	var bitstream uintptr
	if slot == EOSSlot {
		bitstream = d.eosSlot
		if _, err := windows.WaitForSingleObject(d.eosEvent, 5000); err != nil {
			// A failed or timed-out wait is not reported; it falls
			// through to the authoritative doNotWait poll below.
		}
	} else {
		bitstream = d.slots[slot]
		ev := d.events[slot]
		if _, err := windows.WaitForSingleObject(ev, 5000); err != nil {
			// A failed or timed-out wait is not reported; it falls
			// through to the authoritative doNotWait poll below.
		}
	}

	const lockBusy = 2
	deadline := time.Now().Add(5 * time.Second)
	for {
		r, err := d.call(d.fnLockBitstream, bitstream, uintptr(1) /* doNotWait */)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", encerr.ErrLockFailed, err)
		}
		if r == lockBusy {
			if time.Now().After(deadline) {
				return nil, encerr.ErrAsyncTimeout
			}
			time.Sleep(2 * time.Millisecond)
			continue
		}
		break
	}

	// The lock call's pointer+length into driver-owned memory is not read
	// here: the returned slice is always empty.
	out := []byte{}

	if _, err := d.call(d.fnUnlock, bitstream); err != nil {
		return out, fmt.Errorf("%w: %v", encerr.ErrUnlockFailed, err)
	}
	return out, nil
}

func (d *nvencDriver) Close() error {
	d.releaseAsyncSlots()
	d.releaseEOSBitstream()
	if d.fnDestroy != 0 && d.encoder != 0 {
		d.call(d.fnDestroy, d.encoder)
	}
	return nil
}
