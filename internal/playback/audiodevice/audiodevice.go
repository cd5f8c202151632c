// Package audiodevice owns the physical output stream (spec §4.9's
// "audio callback path"): it enumerates playback devices, opens one via
// malgo, and on every hardware callback pulls exactly as many
// interleaved stereo float32 frames as the backend asks for from a
// caller-supplied FrameProvider — normally Engine.RenderAudio.
package audiodevice

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	wkmperrors "github.com/wkmp/core/internal/errors"
)

const channelsPerFrame = 2
const bytesPerSample = 4 // float32

// DeviceInfo describes one enumerated playback device.
type DeviceInfo struct {
	Index int
	Name  string
	ID    string
}

// getBackendForPlatform returns the native backend malgo should target,
// per spec §4.9's platform table (ALSA / WASAPI / CoreAudio).
func getBackendForPlatform() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, wkmperrors.New(nil).
			Component("audiodevice").
			Category(wkmperrors.CategoryAudioDevice).
			Context("error", "unsupported operating system").
			Context("os", runtime.GOOS).
			Build()
	}
}

// EnumerateDevices lists the system's playback-direction devices,
// skipping the null/discard device malgo reports on some backends.
func EnumerateDevices() ([]DeviceInfo, error) {
	backend, err := getBackendForPlatform()
	if err != nil {
		return nil, err
	}

	ctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, wkmperrors.New(err).
			Component("audiodevice").
			Category(wkmperrors.CategoryAudioDevice).
			Context("operation", "init_context").
			Context("backend", runtime.GOOS).
			Build()
	}
	defer func() { _ = ctx.Uninit() }()

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, wkmperrors.New(err).
			Component("audiodevice").
			Category(wkmperrors.CategoryAudioDevice).
			Context("operation", "enumerate_devices").
			Build()
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for i := range infos {
		if strings.Contains(infos[i].Name(), "Discard all samples") {
			continue
		}
		decodedID, err := hexToASCII(infos[i].ID.String())
		if err != nil {
			decodedID = infos[i].ID.String()
		}
		devices = append(devices, DeviceInfo{Index: i, Name: infos[i].Name(), ID: decodedID})
	}
	return devices, nil
}

// GetDefaultDevice returns the system's default playback device.
func GetDefaultDevice() (*DeviceInfo, error) {
	backend, err := getBackendForPlatform()
	if err != nil {
		return nil, err
	}

	ctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, wkmperrors.New(err).
			Component("audiodevice").
			Category(wkmperrors.CategoryAudioDevice).
			Context("operation", "init_context").
			Build()
	}
	defer func() { _ = ctx.Uninit() }()

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, wkmperrors.New(err).
			Component("audiodevice").
			Category(wkmperrors.CategoryAudioDevice).
			Context("operation", "enumerate_devices").
			Build()
	}

	for i := range infos {
		if infos[i].IsDefault == 1 {
			decodedID, _ := hexToASCII(infos[i].ID.String())
			return &DeviceInfo{Index: i, Name: infos[i].Name(), ID: decodedID}, nil
		}
	}
	if len(infos) > 0 {
		decodedID, _ := hexToASCII(infos[0].ID.String())
		return &DeviceInfo{Index: 0, Name: infos[0].Name(), ID: decodedID}, nil
	}

	return nil, wkmperrors.New(nil).
		Component("audiodevice").
		Category(wkmperrors.CategoryAudioDevice).
		Context("error", "no audio playback devices found").
		Build()
}

// SelectDevice resolves deviceID (an empty string or "default" selects
// the system default) against the device list malgo returned, trying an
// exact name match, a decoded-ID match, and finally a partial name match,
// in that order.
func SelectDevice(devices []malgo.DeviceInfo, deviceID string) (*malgo.DeviceInfo, error) {
	if deviceID == "" || deviceID == "default" {
		for i := range devices {
			if devices[i].IsDefault == 1 {
				return &devices[i], nil
			}
		}
		if len(devices) > 0 {
			return &devices[0], nil
		}
	}

	for i := range devices {
		if devices[i].Name() == deviceID {
			return &devices[i], nil
		}
	}
	for i := range devices {
		decodedID, err := hexToASCII(devices[i].ID.String())
		if err == nil && decodedID == deviceID {
			return &devices[i], nil
		}
	}
	for i := range devices {
		if strings.Contains(devices[i].Name(), deviceID) {
			return &devices[i], nil
		}
	}

	return nil, wkmperrors.New(nil).
		Component("audiodevice").
		Category(wkmperrors.CategoryAudioDevice).
		Context("device_id", deviceID).
		Context("available_devices", len(devices)).
		Context("error", "no matching audio device found").
		Build()
}

// TestDevice verifies deviceInfo can actually be opened and started,
// without wiring a FrameProvider — used by device-selection UIs to
// validate a choice before committing it to settings.
func TestDevice(ctx *malgo.AllocatedContext, deviceInfo *malgo.DeviceInfo, sampleRate uint32) error {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = channelsPerFrame
	deviceConfig.Playback.DeviceID = deviceInfo.ID.Pointer()
	deviceConfig.SampleRate = sampleRate
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{})
	if err != nil {
		return wkmperrors.New(err).
			Component("audiodevice").
			Category(wkmperrors.CategoryAudioDevice).
			Context("device_name", deviceInfo.Name()).
			Context("operation", "test_init_device").
			Build()
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return wkmperrors.New(err).
			Component("audiodevice").
			Category(wkmperrors.CategoryAudioDevice).
			Context("device_name", deviceInfo.Name()).
			Context("operation", "test_start_device").
			Build()
	}
	_ = device.Stop()
	return nil
}

// hexToASCII decodes a malgo device ID (reported as hex) back to its
// underlying ASCII representation, where applicable.
func hexToASCII(hexStr string) (string, error) {
	decoded, err := hex.DecodeString(hexStr)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// FrameProvider supplies n interleaved stereo float32 frames on demand,
// returning fewer than 2*n samples only when genuinely starved (the
// device pads the remainder with silence, counts an underrun, and reports
// it on Errors()).
type FrameProvider func(frames int) []float32

// Device owns one opened malgo playback stream.
type Device struct {
	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	dev     *malgo.Device
	running atomic.Bool

	provider  FrameProvider
	errorChan chan error
	underruns atomic.Int64
}

// Config configures Open.
type Config struct {
	DeviceID     string
	SampleRate   uint32
	BufferFrames uint32 // hint only; the backend may pick a different period size
}

// Open initializes and starts a playback device that pulls frames from
// provider on every hardware callback. Close stops and releases it.
func Open(cfg Config, provider FrameProvider) (*Device, error) {
	backend, err := getBackendForPlatform()
	if err != nil {
		return nil, err
	}

	ctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, wkmperrors.New(err).
			Component("audiodevice").
			Category(wkmperrors.CategoryAudioDevice).
			Context("operation", "init_context").
			Build()
	}

	devices, err := ctx.Devices(malgo.Playback)
	if err != nil {
		_ = ctx.Uninit()
		return nil, wkmperrors.New(err).
			Component("audiodevice").
			Category(wkmperrors.CategoryAudioDevice).
			Context("operation", "enumerate_devices").
			Build()
	}

	deviceInfo, err := SelectDevice(devices, cfg.DeviceID)
	if err != nil {
		_ = ctx.Uninit()
		return nil, err
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 44100
	}

	d := &Device{
		ctx:       ctx,
		provider:  provider,
		errorChan: make(chan error, 10),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = channelsPerFrame
	deviceConfig.Playback.DeviceID = deviceInfo.ID.Pointer()
	deviceConfig.SampleRate = sampleRate
	deviceConfig.Alsa.NoMMap = 1
	if cfg.BufferFrames > 0 {
		deviceConfig.PeriodSizeInFrames = cfg.BufferFrames
	}

	callbacks := malgo.DeviceCallbacks{Data: d.onData, Stop: d.onStop}
	dev, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		return nil, wkmperrors.New(err).
			Component("audiodevice").
			Category(wkmperrors.CategoryAudioDevice).
			Context("device_name", deviceInfo.Name()).
			Context("operation", "init_device").
			Build()
	}
	d.dev = dev

	if err := dev.Start(); err != nil {
		dev.Uninit()
		_ = ctx.Uninit()
		return nil, wkmperrors.New(err).
			Component("audiodevice").
			Category(wkmperrors.CategoryAudioDevice).
			Context("operation", "start_device").
			Build()
	}
	d.running.Store(true)

	return d, nil
}

// onData is malgo's playback callback: it must fill pOutput with
// exactly framecount frames before returning, since the backend has no
// other source of silence.
func (d *Device) onData(pOutput, _ []byte, framecount uint32) {
	n := int(framecount)
	samples := d.provider(n)

	framesGot := len(samples) / channelsPerFrame
	if framesGot < n {
		d.underruns.Add(1)
		select {
		case d.errorChan <- wkmperrors.New(nil).
			Component("audiodevice").
			Category(wkmperrors.CategoryAudioDevice).
			Context("error", "provider underrun").
			Context("frames_requested", n).
			Context("frames_received", framesGot).
			Build():
		default:
		}
	}

	for i := 0; i < framesGot*channelsPerFrame; i++ {
		binary.LittleEndian.PutUint32(pOutput[i*bytesPerSample:], math.Float32bits(samples[i]))
	}
	// Any frames the provider couldn't supply are left at pOutput's
	// zero-value, i.e. silence — malgo zero-initializes the buffer.
}

func (d *Device) onStop() {
	select {
	case d.errorChan <- wkmperrors.New(nil).
		Component("audiodevice").
		Category(wkmperrors.CategoryAudioDevice).
		Context("error", "playback device stopped unexpectedly").
		Build():
	default:
	}
}

// Errors returns a channel of asynchronous device errors (underruns,
// unexpected stops). Non-blocking sends; a full channel drops the error.
func (d *Device) Errors() <-chan error { return d.errorChan }

// Underruns returns the cumulative count of callbacks the provider
// could not fully satisfy.
func (d *Device) Underruns() int64 { return d.underruns.Load() }

// IsRunning reports whether the device is currently started.
func (d *Device) IsRunning() bool { return d.running.Load() }

// Close stops and releases the device and its malgo context. Safe to
// call once; a second call is a no-op.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return nil
	}
	d.running.Store(false)

	if d.dev != nil {
		_ = d.dev.Stop()
		d.dev.Uninit()
		d.dev = nil
	}
	if d.ctx != nil {
		err := d.ctx.Uninit()
		d.ctx = nil
		if err != nil {
			return wkmperrors.New(err).
				Component("audiodevice").
				Category(wkmperrors.CategoryAudioDevice).
				Context("operation", "uninit_context").
				Build()
		}
	}
	return nil
}
