package profile

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"strings"
)

type cpuFamily struct {
	vendor   string
	prefixes []string
	cores    []int // parallel to prefixes
	weight   int
}

var cpuFamilies = []cpuFamily{
	{
		vendor:   "Intel",
		prefixes: []string{"Core i9", "Core i7", "Core i5", "Core i3", "Pentium", "Celeron"},
		cores:    []int{8, 6, 4, 2, 2, 2},
		weight:   7,
	},
	{
		vendor:   "AMD",
		prefixes: []string{"Ryzen 9", "Ryzen 7", "Ryzen 5", "Ryzen 3", "Athlon"},
		cores:    []int{12, 8, 6, 4, 4},
		weight:   3,
	},
}

type tier int

const (
	tierLow tier = iota
	tierMid
	tierMidHigh
	tierHigh
)

func tierOf(prefix string) tier {
	switch {
	case strings.Contains(prefix, "i9"), strings.Contains(prefix, "Ryzen 9"):
		return tierHigh
	case strings.Contains(prefix, "i7"), strings.Contains(prefix, "Ryzen 7"):
		return tierMidHigh
	case strings.Contains(prefix, "i5"), strings.Contains(prefix, "Ryzen 5"):
		return tierMid
	default:
		return tierLow
	}
}

type gpuModel struct {
	name   string
	memory []int // GiB
}

var gpuModels = map[string][]gpuModel{
	"NVIDIA": {
		{"GeForce RTX 4090", []int{24}},
		{"GeForce RTX 4070", []int{12}},
		{"GeForce RTX 4060", []int{8}},
		{"GeForce RTX 3080", []int{10, 12}},
		{"GeForce RTX 3070", []int{8}},
		{"GeForce RTX 3060", []int{12}},
		{"GeForce RTX 2070 SUPER", []int{8}},
		{"GeForce RTX 2060", []int{6}},
		{"GeForce GTX 1660 SUPER", []int{6}},
		{"GeForce GTX 1650", []int{4}},
		{"GeForce GTX 1080 Ti", []int{11}},
		{"GeForce GTX 1060", []int{3, 6}},
		{"GeForce GTX 1050 Ti", []int{4}},
		{"GeForce GT 1030", []int{2}},
	},
	"AMD": {
		{"Radeon RX 7900 XTX", []int{24}},
		{"Radeon RX 7800 XT", []int{16}},
		{"Radeon RX 7600", []int{8}},
		{"Radeon RX 6800 XT", []int{16}},
		{"Radeon RX 6700 XT", []int{12}},
		{"Radeon RX 6600", []int{8}},
		{"Radeon RX 5700 XT", []int{8}},
		{"Radeon RX 5500 XT", []int{4, 8}},
	},
	"Intel": {
		{"Arc A770", []int{16, 8}},
		{"Arc A750", []int{8}},
		{"Arc A380", []int{6}},
	},
}

// gpuWeights maps a CPU tier to GPU vendor weights.
var gpuWeights = map[tier][]weighted{
	tierHigh:    {{"NVIDIA", 8}, {"AMD", 2}},
	tierMidHigh: {{"NVIDIA", 7}, {"AMD", 3}},
	tierMid:     {{"NVIDIA", 6}, {"AMD", 3}, {"Intel", 1}},
	tierLow:     {{"NVIDIA", 4}, {"AMD", 4}, {"Intel", 2}},
}

var ramByTier = map[tier][]int{
	tierHigh:    {8, 8},
	tierMidHigh: {8, 8},
	tierMid:     {4, 8},
	tierLow:     {4, 4},
}

var deviceNamePrefixes = []weighted{
	{"DESKTOP", 30}, {"LAPTOP", 25}, {"PC", 20}, {"WORKSTATION", 10},
	{"NB", 7}, {"COMPUTER", 5}, {"AIO", 2}, {"TOWER", 1},
}

var macOUIs = []string{
	"00:02:B3", "00:03:47", "00:04:23", "00:0C:F1", "00:0E:0C", "00:0E:35",
	"00:11:11", "00:13:20", "00:15:17", "00:16:76", "00:18:DE", "00:1B:21",
	"00:06:5B", "00:08:74", "00:0B:DB", "00:0D:56", "00:14:22", "00:1E:4F",
	"00:01:E7", "00:04:EA", "00:0B:CD", "00:0E:7F", "00:11:85", "00:17:08",
	"00:09:2D", "00:0C:CC", "00:12:FE", "00:1A:6B", "00:1D:72", "00:21:CC",
}

var voiceLangs = []string{
	"en-US", "en-GB", "de-DE", "fr-FR", "es-ES", "it-IT", "pt-BR", "nl-NL",
	"pl-PL", "sv-SE", "ja-JP", "ko-KR", "zh-CN", "ru-RU", "tr-TR", "cs-CZ",
}

type weighted struct {
	value  string
	weight int
}

func pick(r *rand.Rand, items []weighted) string {
	total := 0
	for _, it := range items {
		total += it.weight
	}
	n := r.IntN(total)
	for _, it := range items {
		if n < it.weight {
			return it.value
		}
		n -= it.weight
	}
	return items[len(items)-1].value
}

// Generate derives a complete profile from identifier. The same identifier
// always yields the same profile; an empty identifier yields a random one.
func Generate(identifier string) *Profile {
	r := rand.New(newSource(identifier))

	family := cpuFamilies[0]
	if r.IntN(cpuFamilies[0].weight+cpuFamilies[1].weight) >= cpuFamilies[0].weight {
		family = cpuFamilies[1]
	}
	idx := r.IntN(len(family.prefixes))
	prefix := family.prefixes[idx]
	t := tierOf(prefix)

	sep := "-"
	if family.vendor == "AMD" {
		sep = " "
	}
	cpu := CPU{
		Model: fmt.Sprintf("%s%s%d%03d", prefix, sep, 2+r.IntN(11), r.IntN(1000)),
		Cores: family.cores[idx],
	}

	gpu := generateGPU(r, t)

	rams := ramByTier[t]
	ram := rams[r.IntN(len(rams))]

	mac := generateMAC(r)
	seed := r.Float64()

	p := &Profile{
		GPU:            gpu,
		CPU:            cpu,
		RAM:            ram,
		Device:         Device{Name: generateDeviceName(r), MAC: mac},
		Voices:         generateVoices(r),
		BrowserLang:    "en-US",
		NoiseSeed:      seed,
		NoiseMagnitude: r.Float64()*9e-6 + 1e-7,
	}
	p.UserAgent = generateUserAgent(r)
	p.fillDefaults()
	return p
}

func newSource(identifier string) rand.Source {
	if identifier == "" {
		return rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	sum := sha256.Sum256([]byte(identifier))
	return rand.NewPCG(binary.BigEndian.Uint64(sum[:8]), binary.BigEndian.Uint64(sum[8:16]))
}

func generateGPU(r *rand.Rand, t tier) GPU {
	vendor := pick(r, gpuWeights[t])
	models := gpuModels[vendor]
	m := models[r.IntN(len(models))]
	mem := m.memory[r.IntN(len(m.memory))]

	return GPU{
		Vendor:   fmt.Sprintf("Google Inc. (%s)", vendor),
		Renderer: fmt.Sprintf("ANGLE (%s %s Direct3D11 vs_5_0 ps_5_0)", vendor, m.name),
		Memory:   mem * 1024,
	}
}

func generateDeviceName(r *rand.Rand) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	prefix := pick(r, deviceNamePrefixes)
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte('-')
	for range 7 {
		b.WriteByte(alphabet[r.IntN(len(alphabet))])
	}
	return b.String()
}

func generateMAC(r *rand.Rand) string {
	oui := macOUIs[r.IntN(len(macOUIs))]
	nic := r.Uint32() & 0xFFFFFF
	return fmt.Sprintf("%s:%02X:%02X:%02X", oui, byte(nic>>16), byte(nic>>8), byte(nic))
}

func generateVoices(r *rand.Rand) []Voice {
	langs := make([]string, len(voiceLangs))
	copy(langs, voiceLangs)
	r.Shuffle(len(langs), func(i, j int) { langs[i], langs[j] = langs[j], langs[i] })

	tag := r.Uint32()
	voices := make([]Voice, 2+r.IntN(3))
	for i := range voices {
		name := fmt.Sprintf("Voice_%s_%d_%d", langs[i], tag, i)
		voices[i] = Voice{
			Default:      i == 0,
			Lang:         langs[i],
			LocalService: true,
			Name:         name,
			VoiceURI:     name,
		}
	}
	return voices
}
