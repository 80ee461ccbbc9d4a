package profile

import (
	"fmt"
	"strings"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultNoiseMagnitude is used when a profile does not carry its own magnitude.
const DefaultNoiseMagnitude = 5e-6

// DefaultTimezone is the IANA zone of profiles that do not name one.
const DefaultTimezone = "UTC"

// Profile is the fixed set of fake hardware characteristics for one browsing
// session. It is never mutated after Load or Generate returns.
type Profile struct {
	GPU            GPU         `koanf:"gpu" yaml:"gpu" validate:"required"`
	CPU            CPU         `koanf:"cpu" yaml:"cpu" validate:"required"`
	RAM            int         `koanf:"ram" yaml:"ram" validate:"gt=0"`
	Device         Device      `koanf:"device" yaml:"device" validate:"required"`
	Audio          MediaDevice `koanf:"audio" yaml:"audio" validate:"required"`
	Video          MediaDevice `koanf:"video" yaml:"video" validate:"required"`
	Voices         []Voice     `koanf:"speech_voices" yaml:"speech_voices" validate:"dive"`
	CanvasImage    string      `koanf:"canvas_image" yaml:"canvas_image,omitempty" validate:"required,startswith=data:image/"`
	BrowserLang    string      `koanf:"browser_lang" yaml:"browser_lang" validate:"required"`
	Timezone       string      `koanf:"timezone" yaml:"timezone" validate:"required,timezone"`
	UserAgent      string      `koanf:"user_agent" yaml:"user_agent,omitempty" validate:"omitempty,startswith=Mozilla/5.0"`
	NoiseSeed      float64     `koanf:"noise_seed" yaml:"noise_seed" validate:"gte=0,lt=1"`
	NoiseMagnitude float64     `koanf:"noise_magnitude" yaml:"noise_magnitude" validate:"gt=0,lt=0.01"`
}

// GPU describes the graphics adapter reported to WebGL and WebGPU.
type GPU struct {
	Vendor   string `koanf:"vendor" yaml:"vendor" validate:"required"`
	Renderer string `koanf:"renderer" yaml:"renderer" validate:"required"`
	Memory   int    `koanf:"memory" yaml:"memory" validate:"gt=0"` // MiB
}

type CPU struct {
	Model string `koanf:"model" yaml:"model,omitempty"`
	Cores int    `koanf:"cores" yaml:"cores" validate:"gt=0"`
}

// Device carries identity used only as an entropy source. It is never
// handed to the page.
type Device struct {
	Name string `koanf:"name" yaml:"name,omitempty"`
	MAC  string `koanf:"mac" yaml:"mac" validate:"required,mac"`
}

// MediaDevice is one synthetic entry of navigator.mediaDevices.enumerateDevices.
type MediaDevice struct {
	DeviceID string `koanf:"device_id" yaml:"device_id" validate:"required"`
	Label    string `koanf:"label" yaml:"label"`
	GroupID  string `koanf:"group_id" yaml:"group_id" validate:"required"`
}

// Voice is one SpeechSynthesisVoice.
type Voice struct {
	Default      bool   `koanf:"default" yaml:"default"`
	Lang         string `koanf:"lang" yaml:"lang" validate:"required"`
	LocalService bool   `koanf:"local_service" yaml:"local_service"`
	Name         string `koanf:"name" yaml:"name" validate:"required"`
	VoiceURI     string `koanf:"voice_uri" yaml:"voice_uri" validate:"required"`
}

// Load reads a profile from a YAML file, fills derivable fields and validates it.
func Load(path string) (*Profile, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading profile from %s: %w", path, err)
	}

	var p Profile
	if err := k.Unmarshal("", &p); err != nil {
		return nil, fmt.Errorf("unmarshaling profile: %w", err)
	}

	p.fillDefaults()

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks field constraints.
func (p *Profile) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return fmt.Errorf("validating profile: %w", err)
	}
	return nil
}

// fillDefaults derives the fields a profile file may omit from the ones it
// must carry.
func (p *Profile) fillDefaults() {
	if p.BrowserLang == "" {
		p.BrowserLang = "en-US"
	}
	if p.Timezone == "" {
		p.Timezone = DefaultTimezone
	}
	if p.NoiseMagnitude == 0 {
		p.NoiseMagnitude = DefaultNoiseMagnitude
	}
	if p.Device.MAC != "" {
		audio, video := mediaDevicesFor(p.Device.MAC, p.GPU.Vendor)
		if p.Audio.DeviceID == "" {
			p.Audio = audio
		}
		if p.Video.DeviceID == "" {
			p.Video = video
		}
	}
	if p.CanvasImage == "" {
		p.CanvasImage = RenderCanvasImage(p.NoiseSeed)
	}
}

// mediaDevicesFor builds the audio and video devices tied to a MAC address.
func mediaDevicesFor(mac, gpuVendor string) (MediaDevice, MediaDevice) {
	bare := strings.ReplaceAll(strings.ToLower(mac), ":", "")

	label := "Integrated Camera"
	if gpuVendor != "" {
		label = gpuVendor + " Camera"
	}

	return MediaDevice{
			DeviceID: "audio_" + bare,
			Label:    "High Definition Audio Device",
			GroupID:  "audio_group_" + bare,
		}, MediaDevice{
			DeviceID: "video_" + bare,
			Label:    label,
			GroupID:  "video_group_" + bare,
		}
}
