package malgo

import (
	"encoding/hex"
	"runtime"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/speechscope/internal/errors"
)

// AudioDeviceInfo holds information about an audio device
type AudioDeviceInfo struct {
	Index   int
	Name    string
	ID      string
	Default bool
}

// backendFor maps a configured backend name to a malgo backend. An empty name
// selects the platform default.
func backendFor(name string) (malgo.Backend, error) {
	switch strings.ToLower(name) {
	case "":
		return platformBackend()
	case "alsa":
		return malgo.BackendAlsa, nil
	case "pulse", "pulseaudio":
		return malgo.BackendPulseaudio, nil
	case "wasapi":
		return malgo.BackendWasapi, nil
	case "coreaudio":
		return malgo.BackendCoreaudio, nil
	case "null":
		return malgo.BackendNull, nil
	default:
		return malgo.BackendNull, errors.Newf("unknown audio backend %q", name).
			Component(ComponentMalgo).
			Category(errors.CategoryConfiguration).
			Build()
	}
}

func platformBackend() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, errors.Newf("unsupported operating system %s", runtime.GOOS).
			Component(ComponentMalgo).
			Category(errors.CategoryAudio).
			Build()
	}
}

// EnumerateDevices returns a list of available audio capture devices
func EnumerateDevices(backendName string) ([]AudioDeviceInfo, error) {
	backend, err := backendFor(backendName)
	if err != nil {
		return nil, err
	}

	ctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentMalgo).
			Category(errors.CategoryAudio).
			Context("operation", "init_context").
			Build()
	}
	defer func() { _ = ctx.Uninit() }()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentMalgo).
			Category(errors.CategoryAudio).
			Context("operation", "enumerate_devices").
			Build()
	}

	devices := make([]AudioDeviceInfo, 0, len(infos))
	for i := range infos {
		// ALSA lists the discard sink as a capture device
		if strings.Contains(infos[i].Name(), "Discard all samples") {
			continue
		}
		devices = append(devices, describeDevice(i, &infos[i]))
	}
	return devices, nil
}

func describeDevice(index int, info *malgo.DeviceInfo) AudioDeviceInfo {
	decodedID, err := hexToASCII(info.ID.String())
	if err != nil {
		decodedID = info.ID.String()
	}
	return AudioDeviceInfo{
		Index:   index,
		Name:    info.Name(),
		ID:      decodedID,
		Default: info.IsDefault == 1,
	}
}

// selectDevice returns the index of the device matching name: the default
// device for "", "default" or "sysdefault", then an exact name, a decoded ID,
// and finally a name substring.
func selectDevice(devices []AudioDeviceInfo, name string) (int, error) {
	if len(devices) == 0 {
		return -1, errors.New(errors.NewStd("no audio capture devices found")).
			Component(ComponentMalgo).
			Category(errors.CategoryAudio).
			Build()
	}

	if name == "" || name == "default" || name == "sysdefault" {
		for i := range devices {
			if devices[i].Default {
				return i, nil
			}
		}
		return 0, nil
	}

	for i := range devices {
		if devices[i].Name == name {
			return i, nil
		}
	}
	for i := range devices {
		if devices[i].ID == name {
			return i, nil
		}
	}
	for i := range devices {
		if strings.Contains(devices[i].Name, name) {
			return i, nil
		}
	}

	return -1, errors.Newf("no audio device matches %q", name).
		Component(ComponentMalgo).
		Category(errors.CategoryValidation).
		Context("available_devices", len(devices)).
		Build()
}

// hexToASCII converts a hexadecimal string to an ASCII string
func hexToASCII(hexStr string) (string, error) {
	bytes, err := hex.DecodeString(hexStr)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
