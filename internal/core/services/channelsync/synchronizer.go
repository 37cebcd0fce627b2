// Package channelsync keeps role-assigned interfaces on the target channel.
package channelsync

import (
	"context"
	"fmt"
	"log"

	"github.com/lcr-sec/dualstrike/internal/core/domain"
	"github.com/lcr-sec/dualstrike/internal/core/ports"
)

// ChannelResult is the per-interface outcome of a channel-set pass.
type ChannelResult struct {
	Interface string
	Err       error
}

// Mismatch reports an interface whose live channel differs from the target.
type Mismatch struct {
	Interface string
	Got       int
	Want      int
}

// Synchronizer sets and verifies channel agreement between the interfaces of
// a RoleAssignment.
type Synchronizer struct {
	configurator ports.InterfaceConfigurator
	logger       func(message, level string)
}

// New creates a Synchronizer on top of the given configurator.
func New(configurator ports.InterfaceConfigurator) *Synchronizer {
	return &Synchronizer{configurator: configurator}
}

// SetLogger attaches an output for sync warnings.
func (s *Synchronizer) SetLogger(logger func(message, level string)) {
	s.logger = logger
}

func (s *Synchronizer) log(message, level string) {
	log.Printf("[CHANSYNC] %s", message)
	if s.logger != nil {
		s.logger(message, level)
	}
}

// SetChannels issues a channel-set command to each assigned interface
// independently. One interface failing does not stop the other; the caller
// receives every per-interface outcome and decides what to do with a
// partially synchronized pair.
func (s *Synchronizer) SetChannels(ctx context.Context, assignment domain.RoleAssignment, targetChannel int) []ChannelResult {
	results := make([]ChannelResult, 0, 2)
	for _, iface := range assignment.Interfaces() {
		err := s.configurator.SetChannel(ctx, iface, targetChannel)
		if err != nil {
			s.log(fmt.Sprintf("Failed to set channel %d on %s: %v", targetChannel, iface, err), "warning")
		}
		results = append(results, ChannelResult{Interface: iface, Err: err})
	}
	return results
}

// VerifySync reads back the live channel of every assigned interface and
// reports each one that differs from the target. The check is advisory: it
// warns but neither retries nor aborts.
func (s *Synchronizer) VerifySync(ctx context.Context, assignment domain.RoleAssignment, targetChannel int) []Mismatch {
	var mismatches []Mismatch
	for _, iface := range assignment.Interfaces() {
		got, err := s.configurator.Channel(ctx, iface)
		if err != nil {
			s.log(fmt.Sprintf("Could not read channel of %s: %v", iface, err), "warning")
			continue
		}
		if got != targetChannel {
			s.log(fmt.Sprintf("Channel mismatch on %s: on %d, target on %d - deauth may be less effective", iface, got, targetChannel), "warning")
			mismatches = append(mismatches, Mismatch{Interface: iface, Got: got, Want: targetChannel})
		}
	}
	return mismatches
}
