package browser

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupside/veil/internal/app"
	"github.com/stupside/veil/internal/cloak"
	"github.com/stupside/veil/internal/guard"
	"github.com/stupside/veil/internal/profile"
)

func TestFrameRegistryTransitionsOnce(t *testing.T) {
	r := NewFrameRegistry()
	id := target.ID("frame-1")

	assert.Equal(t, FrameUnknown, r.State(id))
	assert.False(t, r.MarkPatched(id, nil), "unknown frames cannot be patched")

	require.True(t, r.Track(id))
	assert.False(t, r.Track(id))
	assert.Equal(t, FrameTracked, r.State(id))

	var cancelled atomic.Int32
	require.True(t, r.MarkPatched(id, func() { cancelled.Add(1) }))
	assert.False(t, r.MarkPatched(id, nil))
	assert.False(t, r.Track(id))
	assert.Equal(t, FramePatched, r.State(id))
	assert.Equal(t, "patched", r.State(id).String())

	r.Forget(id)
	assert.Equal(t, int32(1), cancelled.Load())
	assert.Equal(t, FrameUnknown, r.State(id))
	assert.Zero(t, r.Len())
}

func TestFrameRegistryConcurrentDiscovery(t *testing.T) {
	r := NewFrameRegistry()
	id := target.ID("frame-2")

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		patched atomic.Int32
	)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Track(id) {
				winners.Add(1)
			}
			if r.MarkPatched(id, nil) {
				patched.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	assert.Equal(t, int32(1), patched.Load())
}

func TestFrameRegistryClose(t *testing.T) {
	r := NewFrameRegistry()
	var cancelled atomic.Int32
	for _, id := range []target.ID{"a", "b", "c"} {
		require.True(t, r.Track(id))
		require.True(t, r.MarkPatched(id, func() { cancelled.Add(1) }))
	}
	require.True(t, r.Track("pending"))

	r.Close()
	assert.Equal(t, int32(3), cancelled.Load())
	assert.Zero(t, r.Len())
}

func TestNewLauncherRequiresScript(t *testing.T) {
	_, err := NewLauncher(Options{Profile: profile.Generate("x")})
	require.Error(t, err)

	p := profile.Generate("x")
	s, err := cloak.Build(p, cloak.Options{})
	require.NoError(t, err)

	l, err := NewLauncher(Options{Profile: p, Script: s, Table: guard.NewTable(nil)})
	require.NoError(t, err)
	assert.NotNil(t, l.enforcer)
	assert.NotNil(t, l.Frames())
}

func TestOnBrowserEventIgnoresPages(t *testing.T) {
	p := profile.Generate("x")
	s, err := cloak.Build(p, cloak.Options{})
	require.NoError(t, err)
	l, err := NewLauncher(Options{Profile: p, Script: s})
	require.NoError(t, err)
	l.ctx = context.Background()

	l.onBrowserEvent(&target.EventTargetCreated{TargetInfo: &target.Info{TargetID: "page-1", Type: "page"}})
	assert.Equal(t, FrameUnknown, l.frames.State("page-1"))

	require.True(t, l.frames.Track("gone"))
	l.onBrowserEvent(&target.EventTargetDestroyed{TargetID: "gone"})
	assert.Equal(t, FrameUnknown, l.frames.State("gone"))
}

func TestAllocatorOpts(t *testing.T) {
	base := app.BrowserConfig{WindowWidth: 800, WindowHeight: 600}
	without := allocatorOpts(base, "")

	withPath := base
	withPath.ChromePath = "/usr/bin/chromium"
	assert.Len(t, allocatorOpts(withPath, ""), len(without)+1)

	routed := base
	routed.Proxy = "socks5://127.0.0.1:1080"
	routed.UserDataDir = t.TempDir()
	assert.Len(t, allocatorOpts(routed, ""), len(without)+3)

	assert.Len(t, allocatorOpts(base, profile.Generate("x").UserAgent), len(without)+1)
}

func TestPrepareTabHoldsNewFrames(t *testing.T) {
	p := profile.Generate("x")
	s, err := cloak.Build(p, cloak.Options{})
	require.NoError(t, err)

	l, err := NewLauncher(Options{Profile: p, Script: s, OutOfProcess: true})
	require.NoError(t, err)

	tasks := l.prepareTab()
	attach, ok := tasks[len(tasks)-1].(*target.SetAutoAttachParams)
	require.True(t, ok, "last tab task is %T", tasks[len(tasks)-1])
	assert.True(t, attach.AutoAttach)
	assert.True(t, attach.WaitForDebuggerOnStart)
	assert.True(t, attach.Flatten)

	frame := l.prepareFrame()
	_, ok = frame[len(frame)-1].(*runtime.RunIfWaitingForDebuggerParams)
	assert.True(t, ok, "last frame task is %T", frame[len(frame)-1])

	inProcess, err := NewLauncher(Options{Profile: p, Script: s})
	require.NoError(t, err)
	for _, task := range inProcess.prepareTab() {
		_, held := task.(*target.SetAutoAttachParams)
		assert.False(t, held)
	}
}

func TestUserAgentOverride(t *testing.T) {
	p := profile.Generate("x")
	p.BrowserLang = "fr-FR"
	p.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.6778.86 Safari/537.36"

	ua := userAgentOverride(p)
	require.NotNil(t, ua)
	assert.Equal(t, p.UserAgent, ua.UserAgent)
	assert.Equal(t, "fr-FR", ua.AcceptLanguage)
	assert.Equal(t, "Win32", ua.Platform)

	md := ua.UserAgentMetadata
	require.NotNil(t, md)
	assert.Equal(t, "Windows", md.Platform)
	assert.Equal(t, "10.0.0", md.PlatformVersion)
	assert.Equal(t, "x86", md.Architecture)
	assert.Equal(t, "64", md.Bitness)
	assert.False(t, md.Mobile)
	require.Len(t, md.Brands, 3)
	assert.Equal(t, "Google Chrome", md.Brands[0].Brand)
	assert.Equal(t, "131", md.Brands[0].Version)
	assert.Equal(t, "131.0.6778.86", md.FullVersionList[1].Version)

	p.UserAgent = "Mozilla/5.0 (X11; FreeBSD amd64) Gecko/20100101 Firefox/120.0"
	ua = userAgentOverride(p)
	require.NotNil(t, ua)
	assert.Nil(t, ua.UserAgentMetadata)
	assert.Empty(t, ua.Platform)

	p.UserAgent = ""
	assert.Nil(t, userAgentOverride(p))
}

func TestReportMismatches(t *testing.T) {
	p := profile.Generate("probe")
	s, err := cloak.Build(p, cloak.Options{})
	require.NoError(t, err)

	var voices []string
	for _, v := range p.Voices {
		voices = append(voices, v.Name)
	}
	good := Report{
		Canvas:              p.CanvasImage,
		CanvasNative:        "function toDataURL() { [native code] }",
		WebGLVendor:         p.GPU.Vendor,
		WebGLRenderer:       p.GPU.Renderer,
		DeviceMemory:        float64(p.RAM),
		HardwareConcurrency: p.CPU.Cores,
		Devices: []string{
			"audioinput:" + p.Audio.DeviceID + "_input",
			"audiooutput:" + p.Audio.DeviceID + "_output",
			"videoinput:" + p.Video.DeviceID,
		},
		Voices:         voices,
		RectStable:     true,
		Marked:         true,
		LoopbackSocket: guard.BlockedMessage,
	}
	assert.Empty(t, good.Mismatches(s, p))

	bad := good
	bad.WebGLVendor = "Google Inc. (Real)"
	bad.LoopbackSocket = "opened"
	assert.Len(t, bad.Mismatches(s, p), 2)

	limited, err := cloak.Build(p, cloak.Options{Disabled: []string{"webgl"}, NoGuard: true})
	require.NoError(t, err)
	assert.Empty(t, bad.Mismatches(limited, p))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short"))
	long := truncate("data:image/png;base64,AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	assert.Len(t, long, 51)
}
