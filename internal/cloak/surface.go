package cloak

import (
	"fmt"
	"strings"

	"github.com/stupside/veil/internal/policy"
)

// Member names one native property the kernel captures before patching.
// Kind is "value" for methods, "get"/"set" for accessors and "construct"
// for constructors replaced on the global object.
type Member struct {
	Owner  string `json:"owner"`
	Member string `json:"member"`
	Kind   string `json:"kind"`
}

// Surface is one fingerprintable platform area. Section computes the values
// its page script needs; the script itself decides scope and delegates to
// the captured originals for everything else.
type Surface interface {
	Name() string
	Members() []Member
	Section(in Inputs) any
	Script() string
}

// Surfaces lists every surface in installation order.
func Surfaces() []Surface {
	return []Surface{
		geometrySurface{},
		canvasSurface{},
		webglSurface{},
		audioSurface{},
		navigatorSurface{},
		mediaSurface{},
		webgpuSurface{},
		speechSurface{},
	}
}

// SurfaceNames returns the names accepted by Options.Disabled.
func SurfaceNames() []string {
	var names []string
	for _, s := range Surfaces() {
		names = append(names, s.Name())
	}
	return names
}

func methods(owner string, names ...string) []Member {
	out := make([]Member, len(names))
	for i, n := range names {
		out[i] = Member{Owner: owner, Member: n, Kind: "value"}
	}
	return out
}

func getters(owner string, names ...string) []Member {
	out := make([]Member, len(names))
	for i, n := range names {
		out[i] = Member{Owner: owner, Member: n, Kind: "get"}
	}
	return out
}

func script(name string) string {
	b, err := scripts.ReadFile("js/" + name + ".js")
	if err != nil {
		panic(fmt.Sprintf("cloak: missing embedded script %s: %v", name, err))
	}
	return string(b)
}

// geometry

var (
	rectMetrics         = []string{"x", "y", "width", "height"}
	readOnlyRectMetrics = []string{"top", "right", "bottom", "left"}
)

const (
	rectOwner         = "DOMRect.prototype"
	readOnlyRectOwner = "DOMRectReadOnly.prototype"
)

type geometrySurface struct{}

type geometrySection struct {
	Factor     float64           `json:"factor"`
	Selections map[string]string `json:"selections"`
}

func (geometrySurface) Name() string { return "geometry" }

func (geometrySurface) Members() []Member {
	return append(getters(rectOwner, rectMetrics...), getters(readOnlyRectOwner, readOnlyRectMetrics...)...)
}

func (geometrySurface) Section(in Inputs) any {
	return geometrySection{
		Factor: in.Noise.Factor(),
		Selections: map[string]string{
			rectOwner:         in.Noise.SelectOne("DOMRect", rectMetrics),
			readOnlyRectOwner: in.Noise.SelectOne("DOMRectReadOnly", readOnlyRectMetrics),
		},
	}
}

func (geometrySurface) Script() string { return script("surface_geometry") }

// canvas

type canvasSurface struct{}

type canvasSection struct {
	policy.Canvas
	Image string `json:"image"`
}

func (canvasSurface) Name() string { return "canvas" }

func (canvasSurface) Members() []Member {
	var m []Member
	m = append(m, methods("HTMLCanvasElement.prototype", "toDataURL", "toBlob")...)
	m = append(m, methods("CanvasRenderingContext2D.prototype", "getImageData")...)
	m = append(m, methods("OffscreenCanvasRenderingContext2D.prototype", "getImageData")...)
	m = append(m, methods("OffscreenCanvas.prototype", "convertToBlob")...)
	return m
}

func (canvasSurface) Section(in Inputs) any {
	return canvasSection{Canvas: in.Canvas, Image: in.Profile.CanvasImage}
}

func (canvasSurface) Script() string { return script("surface_canvas") }

// webgl

type webglSurface struct{}

type webglSection struct {
	Vendor         string   `json:"vendor"`
	Renderer       string   `json:"renderer"`
	VendorParam    int      `json:"vendorParam"`
	RendererParam  int      `json:"rendererParam"`
	DebugExtension string   `json:"debugExtension"`
	Extensions     []string `json:"extensions"`
}

func (webglSurface) Name() string { return "webgl" }

func (webglSurface) Members() []Member {
	names := []string{"getParameter", "getExtension", "getSupportedExtensions"}
	return append(methods("WebGLRenderingContext.prototype", names...), methods("WebGL2RenderingContext.prototype", names...)...)
}

func (webglSurface) Section(in Inputs) any {
	return webglSection{
		Vendor:         in.Profile.GPU.Vendor,
		Renderer:       in.Profile.GPU.Renderer,
		VendorParam:    policy.UnmaskedVendor,
		RendererParam:  policy.UnmaskedRenderer,
		DebugExtension: policy.DebugRendererInfo,
		Extensions:     policy.ExtraExtensions,
	}
}

func (webglSurface) Script() string { return script("surface_webgl") }

// audio

type audioSurface struct{}

type audioSection struct {
	Hash             float64 `json:"hash"`
	OscillatorOffset float64 `json:"oscillatorOffset"`
}

func (audioSurface) Name() string { return "audio" }

func (audioSurface) Members() []Member {
	var m []Member
	for _, owner := range []string{"BaseAudioContext.prototype", "AudioContext.prototype", "OfflineAudioContext.prototype"} {
		m = append(m, methods(owner, "createOscillator")...)
	}
	return append(m, methods("AnalyserNode.prototype", "getFloatFrequencyData")...)
}

func (audioSurface) Section(in Inputs) any {
	return audioSection{Hash: in.Noise.Entropy(), OscillatorOffset: in.Noise.OscillatorOffset()}
}

func (audioSurface) Script() string { return script("surface_audio") }

// navigator

type navigatorSurface struct{}

type navigatorSection struct {
	DeviceMemory        int `json:"deviceMemory"`
	HardwareConcurrency int `json:"hardwareConcurrency"`
}

func (navigatorSurface) Name() string { return "navigator" }

func (navigatorSurface) Members() []Member {
	return getters("Navigator.prototype", "deviceMemory", "hardwareConcurrency")
}

func (navigatorSurface) Section(in Inputs) any {
	return navigatorSection{DeviceMemory: in.Profile.RAM, HardwareConcurrency: in.Profile.CPU.Cores}
}

func (navigatorSurface) Script() string { return script("surface_navigator") }

// media

type mediaSurface struct{}

type mediaDevice struct {
	DeviceID string `json:"deviceId"`
	Kind     string `json:"kind"`
	Label    string `json:"label"`
	GroupID  string `json:"groupId"`
}

type mediaSection struct {
	Devices []mediaDevice `json:"devices"`
}

func (mediaSurface) Name() string { return "media" }

func (mediaSurface) Members() []Member {
	return methods("MediaDevices.prototype", "enumerateDevices", "getUserMedia")
}

func (mediaSurface) Section(in Inputs) any {
	a, v := in.Profile.Audio, in.Profile.Video
	return mediaSection{Devices: []mediaDevice{
		{DeviceID: a.DeviceID + "_input", Kind: "audioinput", Label: a.Label, GroupID: a.GroupID},
		{DeviceID: a.DeviceID + "_output", Kind: "audiooutput", Label: a.Label, GroupID: a.GroupID},
		{DeviceID: v.DeviceID, Kind: "videoinput", Label: v.Label, GroupID: v.GroupID},
	}}
}

func (mediaSurface) Script() string { return script("surface_media") }

// webgpu

type webgpuSurface struct{}

type webgpuSection struct {
	Vendor       string         `json:"vendor"`
	Description  string         `json:"description"`
	Features     []string       `json:"features"`
	Limits       map[string]int `json:"limits"`
	DeviceLimits map[string]int `json:"deviceLimits"`
	Format       string         `json:"format"`
}

// gpuLimit is a base value jittered with a fixed salt. Fixed limits keep
// their base.
type gpuLimit struct {
	name  string
	base  int
	salt  int
	fixed bool
}

func adapterLimits(memory int) []gpuLimit {
	return []gpuLimit{
		{"maxTextureDimension2D", memory, 1, false},
		{"maxBindGroups", 4, 2, false},
		{"maxBindingsPerBindGroup", 1000, 3, false},
		{"maxDynamicUniformBuffersPerPipelineLayout", 8, 4, false},
		{"maxDynamicStorageBuffersPerPipelineLayout", 4, 5, false},
		{"maxSampledTexturesPerShaderStage", 16, 6, false},
		{"maxSamplersPerShaderStage", 16, 7, false},
		{"maxStorageBuffersPerShaderStage", 8, 8, false},
		{"maxStorageTexturesPerShaderStage", 4, 9, false},
		{"maxUniformBuffersPerShaderStage", 12, 10, false},
		{"maxUniformBufferBindingSize", 65536, 0, true},
		{"maxStorageBufferBindingSize", 134217728, 0, true},
		{"minUniformBufferOffsetAlignment", 256, 11, false},
		{"minStorageBufferOffsetAlignment", 256, 12, false},
		{"maxVertexBuffers", 8, 13, false},
		{"maxVertexAttributes", 16, 14, false},
		{"maxVertexBufferArrayStride", 2048, 15, false},
	}
}

// deviceSaltOffset moves device limits onto their own salts.
const deviceSaltOffset = 20

func (webgpuSurface) Name() string { return "webgpu" }

func (webgpuSurface) Members() []Member {
	return getters("Navigator.prototype", "gpu")
}

func (webgpuSurface) Section(in Inputs) any {
	limits := map[string]int{}
	device := map[string]int{}
	for _, l := range adapterLimits(in.Profile.GPU.Memory) {
		if l.fixed {
			limits[l.name] = l.base
			continue
		}
		limits[l.name] = in.Noise.Jitter(l.base, l.salt)
		if l.salt <= 10 {
			device[l.name] = in.Noise.Jitter(l.base, l.salt+deviceSaltOffset)
		}
	}

	return webgpuSection{
		Vendor:       in.Profile.GPU.Vendor,
		Description:  in.Profile.GPU.Renderer,
		Features:     []string{"texture-compression-bc", "timestamp-query"},
		Limits:       limits,
		DeviceLimits: device,
		Format:       "bgra8unorm",
	}
}

func (webgpuSurface) Script() string { return script("surface_webgpu") }

// speech

type speechSurface struct{}

type voice struct {
	Default      bool   `json:"default"`
	Lang         string `json:"lang"`
	LocalService bool   `json:"localService"`
	Name         string `json:"name"`
	VoiceURI     string `json:"voiceURI"`
}

type speechSection struct {
	Voices []voice `json:"voices"`
}

func (speechSurface) Name() string { return "speech" }

func (speechSurface) Members() []Member {
	return []Member{
		{Owner: "SpeechSynthesis.prototype", Member: "getVoices", Kind: "value"},
		{Owner: "SpeechSynthesis.prototype", Member: "onvoiceschanged", Kind: "get"},
		{Owner: "SpeechSynthesis.prototype", Member: "onvoiceschanged", Kind: "set"},
	}
}

func (speechSurface) Section(in Inputs) any {
	if len(in.Profile.Voices) == 0 {
		return speechSection{Voices: fallbackVoices(in.Profile.BrowserLang)}
	}
	voices := make([]voice, len(in.Profile.Voices))
	for i, v := range in.Profile.Voices {
		voices[i] = voice{Default: v.Default, Lang: v.Lang, LocalService: v.LocalService, Name: v.Name, VoiceURI: v.VoiceURI}
	}
	return speechSection{Voices: voices}
}

func (speechSurface) Script() string { return script("surface_speech") }

// fallbackVoices is used when a profile carries no voices.
func fallbackVoices(lang string) []voice {
	if strings.TrimSpace(lang) == "" {
		lang = "en-US"
	}
	return []voice{
		{Default: true, Lang: lang, LocalService: true, Name: "FallbackVoice", VoiceURI: "FallbackVoice"},
		{Default: false, Lang: "en-US", LocalService: true, Name: "FallbackEnglish", VoiceURI: "FallbackEnglish"},
	}
}
