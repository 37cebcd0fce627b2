package injection

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMAC(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	mac, err := net.ParseMAC(s)
	require.NoError(t, err)
	return mac
}

func decodeDot11(t *testing.T, frame []byte) *layers.Dot11 {
	t.Helper()
	packet := gopacket.NewPacket(frame, layers.LayerTypeRadioTap, gopacket.Default)
	layer := packet.Layer(layers.LayerTypeDot11)
	require.NotNil(t, layer, "frame must decode to a Dot11 layer")
	return layer.(*layers.Dot11)
}

func TestBuildDeauthFramesBroadcast(t *testing.T) {
	bssid := mustMAC(t, "aa:bb:cc:dd:ee:ff")

	frames, err := buildDeauthFrames(bssid, nil, 10)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	dot11 := decodeDot11(t, frames[0])
	assert.Equal(t, layers.Dot11TypeMgmtDeauthentication, dot11.Type)
	assert.Equal(t, "ff:ff:ff:ff:ff:ff", dot11.Address1.String())
	assert.Equal(t, bssid.String(), dot11.Address2.String())
	assert.Equal(t, bssid.String(), dot11.Address3.String())
}

func TestBuildDeauthFramesTargeted(t *testing.T) {
	bssid := mustMAC(t, "aa:bb:cc:dd:ee:ff")
	client := mustMAC(t, "11:22:33:44:55:66")

	frames, err := buildDeauthFrames(bssid, client, 10)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	// AP to client, then client to AP.
	toClient := decodeDot11(t, frames[0])
	assert.Equal(t, client.String(), toClient.Address1.String())
	assert.Equal(t, bssid.String(), toClient.Address2.String())

	toAP := decodeDot11(t, frames[1])
	assert.Equal(t, bssid.String(), toAP.Address1.String())
	assert.Equal(t, client.String(), toAP.Address2.String())
}

type memInjector struct {
	frames  [][]byte
	failAll bool
	closed  bool
}

func (m *memInjector) Inject(packet []byte) error {
	if m.failAll {
		return errors.New("inject failed")
	}
	m.frames = append(m.frames, packet)
	return nil
}

func (m *memInjector) Close() { m.closed = true }

func newFakeNative(inj PacketInjector, openErr error) *NativeInjector {
	return &NativeInjector{
		handles: make(map[string]PacketInjector),
		open: func(iface string) (PacketInjector, error) {
			if openErr != nil {
				return nil, openErr
			}
			return inj, nil
		},
	}
}

func TestNativeDeauthBroadcastFrameCount(t *testing.T) {
	mem := &memInjector{}
	n := newFakeNative(mem, nil)

	err := n.Deauth(context.Background(), "wlan1", "AA:BB:CC:DD:EE:FF", "", 5, time.Second)
	require.NoError(t, err)
	assert.Len(t, mem.frames, 5)
}

func TestNativeDeauthTargetedFrameCount(t *testing.T) {
	mem := &memInjector{}
	n := newFakeNative(mem, nil)

	err := n.Deauth(context.Background(), "wlan1", "AA:BB:CC:DD:EE:FF", "11:22:33:44:55:66", 5, time.Second)
	require.NoError(t, err)
	// Two frames per step in targeted mode.
	assert.Len(t, mem.frames, 10)
}

func TestNativeDeauthInvalidAddresses(t *testing.T) {
	n := newFakeNative(&memInjector{}, nil)

	err := n.Deauth(context.Background(), "wlan1", "not-a-mac", "", 1, time.Second)
	assert.Error(t, err)

	err = n.Deauth(context.Background(), "wlan1", "AA:BB:CC:DD:EE:FF", "nope", 1, time.Second)
	assert.Error(t, err)
}

func TestNativeDeauthOpenFailure(t *testing.T) {
	n := newFakeNative(nil, errors.New("permission denied"))

	err := n.Deauth(context.Background(), "wlan1", "AA:BB:CC:DD:EE:FF", "", 1, time.Second)
	assert.Error(t, err)
}

func TestNativeDeauthDropsHandleOnInjectFailure(t *testing.T) {
	mem := &memInjector{failAll: true}
	n := newFakeNative(mem, nil)

	err := n.Deauth(context.Background(), "wlan1", "AA:BB:CC:DD:EE:FF", "", 3, time.Second)
	require.Error(t, err)
	assert.True(t, mem.closed)

	n.mu.Lock()
	_, cached := n.handles["wlan1"]
	n.mu.Unlock()
	assert.False(t, cached)
}

func TestNativeDeauthCancelledContext(t *testing.T) {
	mem := &memInjector{}
	n := newFakeNative(mem, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := n.Deauth(ctx, "wlan1", "AA:BB:CC:DD:EE:FF", "", 100, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, mem.frames)
}

func TestNativeCloseReleasesHandles(t *testing.T) {
	mem := &memInjector{}
	n := newFakeNative(mem, nil)

	require.NoError(t, n.Deauth(context.Background(), "wlan1", "AA:BB:CC:DD:EE:FF", "", 1, 0))
	n.Close()
	assert.True(t, mem.closed)
}
